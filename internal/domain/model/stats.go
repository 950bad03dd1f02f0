package model

// RankTally counts pairings by choice rank.
type RankTally struct {
	First    int `json:"first" yaml:"first" msgpack:"f"`
	Second   int `json:"second" yaml:"second" msgpack:"s"`
	Third    int `json:"third" yaml:"third" msgpack:"t"`
	Unranked int `json:"unranked" yaml:"unranked" msgpack:"u"`
}

// Add increments the counter for r.
func (t *RankTally) Add(r ChoiceRank) {
	switch r {
	case FirstChoice:
		t.First++
	case SecondChoice:
		t.Second++
	case ThirdChoice:
		t.Third++
	default:
		t.Unranked++
	}
}

// Total returns the number of tallied pairings.
func (t RankTally) Total() int {
	return t.First + t.Second + t.Third + t.Unranked
}

// PhaseStats are the derived counters stored on a phase.
type PhaseStats struct {
	Ranks              RankTally `json:"ranks" yaml:"ranks" msgpack:"ranks"`
	WithoutProject     int       `json:"employee_without_project" yaml:"employee_without_project" msgpack:"wp"`
	ProjectsFilled     int       `json:"project_filled" yaml:"project_filled" msgpack:"pf"`
	ProjectsNotFilled  int       `json:"project_not_filled" yaml:"project_not_filled" msgpack:"pn"`
	ProjectsEmpty      int       `json:"project_without_employee" yaml:"project_without_employee" msgpack:"pe"`
	MeanChoiceRank     float64   `json:"mean_choice_rank" yaml:"mean_choice_rank" msgpack:"mr"`
	PreferenceMetRatio float64   `json:"preference_met_ratio" yaml:"preference_met_ratio" msgpack:"pm"`
}

// ProjectStats are the derived counters stored on a project.
type ProjectStats struct {
	Ranks                        RankTally `json:"ranks" yaml:"ranks" msgpack:"ranks"`
	SkillsFulfilled              int       `json:"skills_fulfilled" yaml:"skills_fulfilled" msgpack:"sf"`
	SkillsAndCompetencyFulfilled int       `json:"skills_and_competency_fulfilled" yaml:"skills_and_competency_fulfilled" msgpack:"sc"`
}
