// Package label assigns topic labels to canonical actions. Signals are
// cumulative: keyword hits, portfolio inference, source rules, and
// cross-label rules all contribute to the final set. An empty result is
// a valid outcome; labeling never fails the pipeline.
package label

import (
	"regexp"
	"sort"
	"strings"

	"github.com/keeptracknz/collector/internal/normalize"
	"github.com/keeptracknz/collector/internal/schema"
)

// Predefined is the closed label vocabulary, alphabetical.
var Predefined = []string{
	"Agriculture",
	"Defence",
	"Economy",
	"Education",
	"Environment",
	"Health",
	"Housing",
	"Immigration",
	"Infrastructure",
	"Justice",
	"Local Government",
	"Social Welfare",
	"Tax",
	"Transport",
	"Treaty of Waitangi",
}

// labelKeywords drives the keyword signal. Matching is word-bounded,
// case-insensitive, and macron-folded, so "Kāinga Ora" and "kainga ora"
// hit alike.
var labelKeywords = map[string][]string{
	"Housing": {
		"housing", "homes", "residential", "property", "rent", "rental",
		"accommodation", "tenancy", "landlord", "tenant", "mortgage",
		"affordable housing", "social housing", "public housing",
		"kāinga ora", "building consent", "construction",
		"development", "urban planning", "zoning", "density",
	},
	"Health": {
		"health", "healthcare", "medical", "hospital", "clinic", "doctor",
		"nurse", "patient", "treatment", "medicine", "pharmaceutical",
		"mental health", "public health", "wellbeing", "wellness",
		"health nz", "te whatu ora", "pharmac", "covid", "pandemic",
		"disability", "aged care", "elder care",
	},
	"Education": {
		"education", "school", "student", "teacher", "university",
		"college", "learning", "curriculum", "scholarship", "exam",
		"qualification", "training", "skill", "literacy", "numeracy",
		"early childhood", "tertiary", "vocational", "apprenticeship",
		"education funding",
	},
	"Infrastructure": {
		"infrastructure", "road", "bridge", "tunnel", "highway",
		"motorway", "rail", "railway", "public transport", "water",
		"sewage", "electricity", "power", "broadband", "internet",
		"telecommunications", "energy", "utility", "construction",
		"development", "maintenance", "upgrade", "investment",
	},
	"Environment": {
		"environment", "environmental", "climate", "carbon", "emissions",
		"renewable", "sustainability", "conservation", "biodiversity",
		"pollution", "waste", "recycling", "water quality", "air quality",
		"forest", "marine", "coastal", "national park", "reserve",
		"climate change", "greenhouse gas", "clean energy", "green",
		"nature", "wildlife", "ecosystem",
	},
	"Economy": {
		"economy", "economic", "business", "industry", "commerce",
		"trade", "export", "import", "investment", "employment",
		"job", "work", "productivity", "growth", "development",
		"innovation", "technology", "digital", "manufacturing",
		"tourism", "agriculture", "fisheries", "forestry",
		"small business", "enterprise",
	},
	"Justice": {
		"justice", "court", "judge", "law", "legal", "crime", "police",
		"prison", "corrections", "bail", "sentence", "trial", "jury",
		"solicitor", "barrister", "lawyer", "attorney", "prosecution",
		"defence", "civil", "criminal", "offence", "penalty", "fine",
		"legal aid", "family court", "youth justice",
	},
	"Immigration": {
		"immigration", "migrant", "visa", "residence", "citizenship",
		"border", "refugee", "asylum", "deportation", "work permit",
		"student visa", "family reunion", "skilled migrant",
		"points system", "immigration nz", "customs", "passport",
	},
	"Defence": {
		"defence", "defense", "military", "army", "navy", "air force",
		"nzdf", "security", "national security", "peacekeeping",
		"veteran", "deployment", "equipment", "training",
		"international relations", "alliance", "treaty",
	},
	"Transport": {
		"transport", "transportation", "road", "rail", "bus", "ferry",
		"aviation", "airport", "port", "shipping", "logistics",
		"public transport", "cycling", "walking", "safety",
		"traffic", "vehicle", "driver", "license", "registration",
		"waka kotahi", "nzta",
	},
	"Social Welfare": {
		"welfare", "benefit", "pension", "allowance", "support",
		"social development", "family", "child", "youth", "senior",
		"disability", "poverty", "hardship", "assistance", "community",
		"social service", "msd", "work and income", "winz",
		"superannuation", "accommodation supplement",
	},
	"Tax": {
		"tax", "taxation", "gst", "income tax", "company tax",
		"ird", "inland revenue", "customs duty", "excise",
		"tax credit", "tax relief", "tax rate", "tax policy",
		"provisional tax", "fringe benefit", "working for families",
		"family boost", "rates", "levy",
	},
	"Local Government": {
		"local government", "council", "mayor", "councillor", "rates",
		"district", "city", "regional", "local authority", "bylaw",
		"planning", "consent", "resource management", "three waters",
		"waste management", "community facility", "library", "park",
		"local road", "water supply", "wastewater",
	},
	"Treaty of Waitangi": {
		"treaty", "waitangi", "iwi", "māori", "tangata whenua",
		"settlement", "claim", "tribunal", "partnership", "sovereignty",
		"tino rangatiratanga", "biculturalism", "te tiriti",
		"indigenous rights", "cultural heritage", "land rights",
		"co-governance", "co-management",
	},
	"Agriculture": {
		"agriculture", "farming", "farm", "farmer", "livestock",
		"dairy", "beef", "sheep", "crop", "harvest", "rural",
		"primary sector", "food production", "meat", "milk",
		"wool", "horticulture", "fruit", "vegetable", "wine",
		"viticulture", "pastoral", "irrigation", "drought",
		"biosecurity", "animal welfare",
	},
}

// portfolioLabels maps a ministerial portfolio to its label.
var portfolioLabels = map[string]string{
	"Finance":               "Economy",
	"Housing":               "Housing",
	"Health":                "Health",
	"Education":             "Education",
	"Transport":             "Transport",
	"Justice":               "Justice",
	"Environment":           "Environment",
	"Defence":               "Defence",
	"Immigration":           "Immigration",
	"Infrastructure":        "Infrastructure",
	"Internal Affairs":      "Local Government",
	"Local Government":      "Local Government",
	"Social Development":    "Social Welfare",
	"Revenue":               "Tax",
	"Agriculture":           "Agriculture",
	"Māori Crown Relations": "Treaty of Waitangi",
	"Prime Minister":        "Economy",
}

// labelPatterns holds one compiled word-bounded pattern per label,
// built over the folded keyword set.
var labelPatterns = compilePatterns()

func compilePatterns() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(labelKeywords))
	for label, keywords := range labelKeywords {
		folded := make([]string, 0, len(keywords))
		seen := make(map[string]bool, len(keywords))
		for _, kw := range keywords {
			f := regexp.QuoteMeta(normalize.Fold(kw))
			if !seen[f] {
				seen[f] = true
				folded = append(folded, f)
			}
		}
		sort.Strings(folded)
		out[label] = regexp.MustCompile(`\b(?:` + strings.Join(folded, "|") + `)\b`)
	}
	return out
}

// Apply returns the sorted, duplicate-free label set for one action.
// Labels already present on the action are kept, so relabeling a merged
// or previously labeled action only ever widens the set.
func Apply(a schema.CanonicalAction) []string {
	text := normalize.Fold(classifiableText(a))
	title := normalize.Fold(a.Title)

	matched := make(map[string]bool, len(a.Labels))
	for _, l := range a.Labels {
		matched[l] = true
	}
	for label, pattern := range labelPatterns {
		if pattern.MatchString(text) {
			matched[label] = true
		}
	}

	applySourceRules(a, title, matched)
	applyPortfolioRule(a, matched)
	applyTitleRules(title, matched)
	applyCrossRules(a, title, matched)
	applyFallbackRule(a, title, matched)

	out := make([]string, 0, len(matched))
	for label := range matched {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// classifiableText joins the fields worth matching keywords against.
func classifiableText(a schema.CanonicalAction) string {
	parts := []string{a.Title, a.Summary, a.PrimaryEntity}
	if m := a.Metadata; m != nil {
		parts = append(parts, m.NoticeType, m.DocumentType, m.Portfolio)
	}
	return strings.Join(parts, " ")
}

// applySourceRules covers gazette notices. A judicial or lawyer-roll
// notice type implies Justice regardless of keyword hits; appointment
// notices imply the label of the office being filled.
func applySourceRules(a schema.CanonicalAction, title string, matched map[string]bool) {
	if a.SourceSystem != schema.Gazette {
		return
	}
	if m := a.Metadata; m != nil {
		noticeType := normalize.Fold(m.NoticeType)
		if strings.Contains(noticeType, "judicial") || strings.Contains(noticeType, "lawyer") {
			matched["Justice"] = true
		}
	}
	if !strings.Contains(title, "appointment") && !strings.Contains(title, "appoint") {
		return
	}
	switch {
	case strings.Contains(title, "judge") || strings.Contains(title, "court"):
		matched["Justice"] = true
	case strings.Contains(title, "health"):
		matched["Health"] = true
	}
}

func applyPortfolioRule(a schema.CanonicalAction, matched map[string]bool) {
	if a.Metadata == nil || a.Metadata.Portfolio == "" {
		return
	}
	for portfolio, label := range portfolioLabels {
		if normalize.Fold(portfolio) == normalize.Fold(a.Metadata.Portfolio) {
			matched[label] = true
			return
		}
	}
}

func applyTitleRules(title string, matched map[string]bool) {
	if strings.Contains(title, "tax") {
		matched["Tax"] = true
	}
	if strings.Contains(title, "treaty principles") || strings.Contains(title, "waitangi") {
		matched["Treaty of Waitangi"] = true
	}
	if strings.Contains(title, "gang") && strings.Contains(title, "legislation") {
		matched["Justice"] = true
	}
}

func applyCrossRules(a schema.CanonicalAction, title string, matched map[string]bool) {
	if matched["Infrastructure"] && strings.Contains(title, "housing") {
		matched["Housing"] = true
	}
	if matched["Economy"] {
		combined := title + " " + normalize.Fold(a.Summary)
		for _, word := range []string{"agriculture", "farming", "rural"} {
			if strings.Contains(combined, word) {
				matched["Agriculture"] = true
				break
			}
		}
	}
}

// applyFallbackRule keeps unclassifiable amendment acts from exporting
// label-less: amendments without a clearer subject default to Economy.
func applyFallbackRule(a schema.CanonicalAction, title string, matched map[string]bool) {
	if len(matched) > 0 || a.SourceSystem != schema.Legislation {
		return
	}
	if !strings.Contains(title, "amendment") {
		return
	}
	for _, subject := range []string{"health", "education", "housing"} {
		if strings.Contains(title, subject) {
			return
		}
	}
	matched["Economy"] = true
}
