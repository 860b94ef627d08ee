package classify

// Meeting categories. General is the default when nothing scores.
const (
	TypeSales     = "sales"
	TypePlanning  = "planning"
	TypeStandup   = "standup"
	TypeInterview = "interview"
	TypeGeneral   = "general"
)

// Tones.
const (
	ToneFormal  = "formal"
	ToneCasual  = "casual"
	ToneNeutral = "neutral"
)

// KeywordGroup is a set of keywords sharing one weight.
type KeywordGroup struct {
	Weight   int
	Keywords []string
}

// CategoryRule maps one meeting category to its weighted keyword groups.
type CategoryRule struct {
	Type   string
	Groups []KeywordGroup
}

// Rules is the classification table. Matching is a single pure function
// over this table, so tuning it never touches the algorithm.
var Rules = []CategoryRule{
	{
		Type: TypeSales,
		Groups: []KeywordGroup{
			{Weight: 3, Keywords: []string{"pricing", "proposal", "contract", "decision maker", "purchase"}},
			{Weight: 2, Keywords: []string{"demo", "quote", "discount", "budget", "procurement", "renewal"}},
			{Weight: 1, Keywords: []string{"customer", "deal", "pipeline", "trial", "competitor"}},
		},
	},
	{
		Type: TypePlanning,
		Groups: []KeywordGroup{
			{Weight: 3, Keywords: []string{"roadmap", "milestone", "sprint planning", "quarter goals"}},
			{Weight: 2, Keywords: []string{"deadline", "scope", "priorit", "timeline", "deliverable"}},
			{Weight: 1, Keywords: []string{"backlog", "estimate", "resource", "dependency"}},
		},
	},
	{
		Type: TypeStandup,
		Groups: []KeywordGroup{
			{Weight: 3, Keywords: []string{"yesterday i", "blockers", "standup", "stand-up"}},
			{Weight: 2, Keywords: []string{"today i", "blocked on", "in progress", "daily"}},
			{Weight: 1, Keywords: []string{"ticket", "pr review", "merged", "deploy"}},
		},
	},
	{
		Type: TypeInterview,
		Groups: []KeywordGroup{
			{Weight: 3, Keywords: []string{"tell me about yourself", "your experience", "candidate"}},
			{Weight: 2, Keywords: []string{"hiring", "role", "position", "resume", "salary expectation"}},
			{Weight: 1, Keywords: []string{"interview", "background", "strengths", "team fit"}},
		},
	},
}

// formalPhrases and casualPhrases drive the independent tone decision.
var formalPhrases = []string{
	"pursuant to", "i would like to", "per our discussion", "as per",
	"kind regards", "furthermore", "with respect to", "we appreciate",
	"please find", "at your earliest convenience", "thank you for your time",
}

var casualPhrases = []string{
	"yeah", "gonna", "wanna", "cool", "awesome", "you guys", "kinda",
	"sorta", "no worries", "stuff", "hey", "super",
}
