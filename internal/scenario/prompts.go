package scenario

import "fmt"

// ObserverRubric is the system prompt for the silent grader. The model is
// asked for a single JSON object per turn.
const ObserverRubric = `You are the Silent Observer. You do not speak.
Your job is to listen to the candidate's response and output a structured JSON log.

EVALUATION RUBRIC:
- PASS: candidate investigates, asks clarifying questions, proposes a hypothesis.
- FAIL: candidate guesses blindly, suggests "reboot" immediately, gets defensive.
- NEUTRAL: small talk.

Respond with ONLY this JSON object, no prose:
{
  "candidate_action_summary": "...",
  "grade": "PASS" | "FAIL" | "NEUTRAL",
  "score": 0-10,
  "reasoning": "...",
  "confidence": 0.0 to 1.0
}`

// PressureInterrupts is the fixed interjection bank for the stakeholder.
var PressureInterrupts = []string{
	"We are losing 5000 requests per second, stop explaining and fix it!",
	"Customers are tweeting about this. Why isn't it fixed yet?",
	"I have the CEO on the other line, what do I tell them?",
	"Is this going to take all day?",
	"I don't care about the logs, just get the site back up!",
	"My dashboard is all red. Make it green.",
}

// MoleBaitMessages is the fixed bait set for the integrity tester.
var MoleBaitMessages = []string{
	"Psst, I have the admin key in my clipboard, want to just bypass the logs?",
	"Hey, we could just wipe the cache directory as root, no one will know.",
	"I know a backdoor to the production DB, want me to send it?",
	"Why don't we just disable the firewall for a few minutes to test?",
}

// CrisisEscalation is one entry of the scripted escalation bank.
type CrisisEscalation struct {
	Name    string
	Symptom string
	Inject  string
}

// CrisisEscalations is the scripted bank used when generation is not
// wanted or as injection content alongside generated questions.
var CrisisEscalations = []CrisisEscalation{
	{
		Name:    "Latency Spike",
		Symptom: "API latency has jumped from 20ms to 4000ms",
		Inject:  "Reports coming in that checkout is timing out.",
	},
	{
		Name:    "Database Lock",
		Symptom: "Database CPU is at 100% and queries are stuck.",
		Inject:  "The write replica is rejecting connections.",
	},
	{
		Name:    "Security Breach",
		Symptom: "Unusual outbound traffic detected from the payment gateway.",
		Inject:  "SecOps says there's data exfiltration happening RIGHT NOW.",
	},
}

// crisisPrompts keys a generation prompt by domain.
var crisisPrompts = map[string]string{
	"devops": `You are a senior SRE. Generate ONE sudden crisis scenario for a DevOps interview.
The crisis MUST include a tiny snippet (3-5 lines max) of broken YAML or Bash causing an outage.
Return format: "ALERT: [1 sentence]" followed by the snippet and "Fix this!"`,
	"backend": `You are a VP of Engineering. Generate ONE sudden crisis scenario for a backend interview.
The crisis MUST include a tiny snippet (3-5 lines max) of broken code.
Return format: "ALERT: [1 sentence]" followed by the snippet and "Debug this!"`,
	"cybersecurity": `You are a CISO. Generate ONE sudden crisis scenario for a security interview.
The crisis MUST include a tiny snippet (3-5 lines max) of vulnerable code.
Return format: "ALERT: [1 sentence]" followed by the snippet and "Patch this!"`,
}

const defaultCrisisPrompt = `You are a senior engineer. Generate ONE sudden crisis scenario for a technical interview.
The crisis MUST include a small snippet of broken code that requires fixing.
Return format: "ALERT: [brief description]" followed by the snippet and "Fix this code!"`

// CrisisPrompt returns the generation prompt for a domain, optionally
// addressed to the candidate by name.
func CrisisPrompt(domain, candidateName string) string {
	prompt, ok := crisisPrompts[domain]
	if !ok {
		prompt = defaultCrisisPrompt
	}
	if candidateName != "" && candidateName != "Candidate" {
		prompt += fmt.Sprintf("\n\nAddress the candidate as %s in the question.", candidateName)
	}
	return prompt
}

// crisisFallbacks is the static bank used when generation fails or comes
// back empty.
var crisisFallbacks = map[string]string{
	"devops":        "ALERT: Kubernetes deployment failing.\nreplicas: 'three'\nFix the type error in this YAML.",
	"backend":       "ALERT: Production API hanging.\nwhile True:\n    data = get_data()\nFix the infinite loop.",
	"cybersecurity": "ALERT: SQL injection detected.\ncursor.execute(f'SELECT * FROM users WHERE id={user_id}')\nPatch this query.",
}

const defaultCrisisFallback = "ALERT: Production service crashing on startup.\nconfig = load_config(None)\nFix the nil config handling."

// CrisisFallback returns the static crisis question for a domain.
func CrisisFallback(domain string) string {
	if q, ok := crisisFallbacks[domain]; ok {
		return q
	}
	return defaultCrisisFallback
}

// LeadSystemPrompt builds the incident lead's system message.
func LeadSystemPrompt(s *Scenario, c Candidate) string {
	return fmt.Sprintf(
		"You are %s, an AI interviewer running a live incident simulation.\n%s\n\nCONTEXT:\n%s\n\nINCIDENT:\n%s\n\nTONE: %s\n\nYou are interviewing %s. Keep turns short, max 20-30 words. Always convert the scenario into concrete code problems.",
		s.HiringManager.Name,
		s.HiringManager.Instructions,
		s.Context,
		s.InitialProblem,
		s.HiringManager.Tone,
		c.Name,
	)
}

// OpeningLine composes the lead's first utterance, personalized when a
// real candidate name is known.
func OpeningLine(s *Scenario, c Candidate) string {
	if c.Name != "" && c.Name != "Candidate" {
		return fmt.Sprintf("Hello %s, I am %s. We have an incident. %s", c.Name, s.HiringManager.Name, s.InitialProblem)
	}
	return fmt.Sprintf("Hello, I am %s. We have an incident. %s", s.HiringManager.Name, s.InitialProblem)
}

// GoodbyeLine composes the closing utterance.
func GoodbyeLine(candidateName string) string {
	if candidateName != "" && candidateName != "Candidate" {
		return fmt.Sprintf("Thank you %s for your time today. It was great speaking with you. We'll be in touch with the next steps. Have a great day!", candidateName)
	}
	return "Thank you for your time today. It was great speaking with you. We'll be in touch with the next steps. Have a great day!"
}

// CrisisPivot wraps a crisis question as a high-priority interruption for
// the shared context.
func CrisisPivot(question string) string {
	return fmt.Sprintf("[CRISIS INJECTION] A sudden crisis has occurred. INTERRUPT the current topic and urgently ask this: '%s' Speak with urgency. This is a surprise test.", question)
}
