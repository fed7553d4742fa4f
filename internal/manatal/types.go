package manatal

import "strings"

// Stage is a named step in a hiring pipeline.
type Stage struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// StageRef is the stage embedded in a match record.
type StageRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PipelineStageRef carries the job-pipeline stage name and ordering rank,
// used by the funnel export.
type PipelineStageRef struct {
	Name string `json:"name"`
	Rank int    `json:"rank"`
}

// Match associates a candidate with a job at a given pipeline stage.
type Match struct {
	ID               int64             `json:"id"`
	Candidate        int64             `json:"candidate"`
	Stage            *StageRef         `json:"stage"`
	IsActive         bool              `json:"is_active"`
	Rank             string            `json:"rank"`
	UpdatedAt        string            `json:"updated_at"`
	JobPipelineStage *PipelineStageRef `json:"job_pipeline_stage"`
}

// InStage reports whether the match sits in the given stage id.
func (m Match) InStage(stageID int64) bool {
	return m.Stage != nil && m.Stage.ID == stageID
}

// Candidate is an applicant record. Optional vendor fields stay empty
// strings rather than absent keys.
type Candidate struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
}

// DisplayName returns the candidate's full name, composing it from the
// first/last fields when the vendor omits full_name.
func (c Candidate) DisplayName() string {
	if name := strings.TrimSpace(c.FullName); name != "" {
		return name
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// GivenName returns the first word of the display name, used for the
// {name} template substitution.
func (c Candidate) GivenName() string {
	fields := strings.Fields(c.DisplayName())
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// NormalizedEmail returns the candidate email lowercased and trimmed.
func (c Candidate) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(c.Email))
}

// Note is an annotation on a candidate. Different API versions spell the
// text field differently, so all three spellings are accepted.
type Note struct {
	ID   int64  `json:"id"`
	Info string `json:"info"`
	Note string `json:"note"`
	Text string `json:"text"`
}

// Body returns the note text regardless of which field the server used.
func (n Note) Body() string {
	if n.Note != "" {
		return n.Note
	}
	if n.Text != "" {
		return n.Text
	}
	return n.Info
}
