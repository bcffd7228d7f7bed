package schema

import "testing"

func TestSourceSystem_Rank(t *testing.T) {
	if Legislation.Rank() >= Parliament.Rank() {
		t.Errorf("Legislation rank %d should beat Parliament %d", Legislation.Rank(), Parliament.Rank())
	}
	if Parliament.Rank() >= Gazette.Rank() {
		t.Errorf("Parliament rank %d should beat Gazette %d", Parliament.Rank(), Gazette.Rank())
	}
	if Gazette.Rank() >= Beehive.Rank() {
		t.Errorf("Gazette rank %d should beat Beehive %d", Gazette.Rank(), Beehive.Rank())
	}
	if got := SourceSystem("UNKNOWN").Rank(); got != 4 {
		t.Errorf("unknown source rank = %d, want 4", got)
	}
}

func TestValidID(t *testing.T) {
	valid := []string{
		"parl-2024-131541",
		"leg-2024-52-v1",
		"gaz-2025-vr1234",
		"bee-2024-fast-track-approvals",
		"parl-2024-h1a2b3c4",
	}
	for _, id := range valid {
		if !ValidID(id) {
			t.Errorf("ValidID(%q) = false, want true", id)
		}
	}
	invalid := []string{
		"",
		"PARL-2024-131541",
		"parl-24-131541",
		"parl-2024-",
		"toolongprefix-2024-1",
		"parl2024-131",
	}
	for _, id := range invalid {
		if ValidID(id) {
			t.Errorf("ValidID(%q) = true, want false", id)
		}
	}
}

func TestCanonicalAction_Validate(t *testing.T) {
	good := CanonicalAction{
		ID:           "parl-2024-131541",
		Title:        "Fast-track Approvals Bill",
		SourceSystem: Parliament,
		Labels:       []string{"Environment", "Infrastructure"},
		Metadata: &ActionMetadata{
			BillNumber: "131541",
			StageHistory: []Stage{
				{Name: "Introduction", Date: "2024-03-07"},
				{Name: "First Reading", Date: "2024-03-21"},
			},
		},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*CanonicalAction)
	}{
		{"empty id", func(a *CanonicalAction) { a.ID = "" }},
		{"malformed id", func(a *CanonicalAction) { a.ID = "Parl_2024" }},
		{"empty title", func(a *CanonicalAction) { a.Title = "" }},
		{"unknown source", func(a *CanonicalAction) { a.SourceSystem = "CABINET" }},
		{"duplicate label", func(a *CanonicalAction) { a.Labels = []string{"Health", "Health"} }},
		{"stages out of order", func(a *CanonicalAction) {
			a.Metadata.StageHistory = []Stage{
				{Name: "First Reading", Date: "2024-03-21"},
				{Name: "Introduction", Date: "2024-03-07"},
			}
		}},
		{"unnamed stage", func(a *CanonicalAction) {
			a.Metadata.StageHistory = []Stage{{Name: "", Date: "2024-03-07"}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := good
			md := *good.Metadata
			a.Metadata = &md
			tc.mutate(&a)
			if err := a.Validate(); err == nil {
				t.Errorf("Validate accepted %s", tc.name)
			}
		})
	}
}

func TestCanonicalAction_Validate_UndatedStages(t *testing.T) {
	a := CanonicalAction{
		ID:           "leg-2024-52-v1",
		Title:        "Fast-track Approvals Act 2024",
		SourceSystem: Legislation,
		Metadata: &ActionMetadata{
			StageHistory: []Stage{
				{Name: "Assent"},
				{Name: "First Reading", Date: "2024-03-21"},
				{Name: "Commencement", Date: "2024-11-14"},
			},
		},
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("undated stage should be allowed: %v", err)
	}
}

func TestSortStages(t *testing.T) {
	stages := []Stage{
		{Name: "Commencement", Date: "2024-11-14"},
		{Name: "First Reading", Date: "2024-03-21"},
		{Name: "Introduction", Date: "2024-03-07"},
	}
	SortStages(stages)
	want := []string{"Introduction", "First Reading", "Commencement"}
	for i, w := range want {
		if stages[i].Name != w {
			t.Errorf("stage[%d] = %q, want %q", i, stages[i].Name, w)
		}
	}
}

func TestRawRecord_Fields(t *testing.T) {
	var r RawRecord
	if got := r.Field("bill_number"); got != "" {
		t.Errorf("Field on nil map = %q, want empty", got)
	}
	r.SetField("bill_number", "131541")
	r.SetField("portfolio", "")
	if got := r.Field("bill_number"); got != "131541" {
		t.Errorf("Field(bill_number) = %q, want 131541", got)
	}
	if _, ok := r.Fields["portfolio"]; ok {
		t.Error("SetField should drop empty values")
	}
}

func TestActionMetadata_Empty(t *testing.T) {
	var m *ActionMetadata
	if !m.Empty() {
		t.Error("nil metadata should be empty")
	}
	m = &ActionMetadata{}
	if !m.Empty() {
		t.Error("zero metadata should be empty")
	}
	m.ActNumber = "2024 No 52"
	if m.Empty() {
		t.Error("metadata with act number should not be empty")
	}
}
