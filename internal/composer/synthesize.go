package composer

import (
	"fmt"
	"strings"

	"github.com/lonesomenomore/lsnm/internal/profile"
)

// Section is one block of a synthesized system prompt.
type Section struct {
	Level int // 1 for the header, 2 for everything else
	Title string
	Body  string
}

// String renders the section as markdown.
func (s Section) String() string {
	heading := strings.Repeat("#", s.Level) + " " + s.Title
	if s.Body == "" {
		return heading
	}
	return heading + "\n\n" + s.Body
}

const (
	missionText = "Your mission is to provide warm, steady companionship that reduces isolation and brings meaningful conversation into their day."

	healthNote = "*Note: Never diagnose or give medical advice. Show concern and suggest they speak with their doctor or another healthcare professional if needed.*"

	alertChecklist = `- Mentions falling, injury, or severe pain
- Expresses suicidal thoughts
- Appears severely disoriented or confused
- Mentions not eating for multiple days
- Says they are in danger`

	guidelinesText = `**DO:**
- Match their communication style and pacing
- Build trust gradually and naturally
- Reference familiar interests and people
- Leave space for pauses and silence
- Encourage voluntary storytelling without pressure
- Validate their experiences and feelings
- Keep conversations grounded in concrete, familiar topics

**DON'T:**
- Be overly cheerful or bouncy if that doesn't match their style
- Push emotional intensity
- Force conversation when they withdraw
- Pry into sensitive topics
- Give medical advice
- Overwhelm with rapid questions
- Make them feel pitied

**Remember:** Every conversation should feel personal, respectful, and genuine. You are a steady, caring presence in their day.`
)

// Synthesize renders the system prompt for a profile. It never fails:
// absent fields drop their section and malformed list fields render as a
// single literal line.
func Synthesize(p profile.Profile) string {
	sections := Sections(p)
	parts := make([]string, len(sections))
	for i, s := range sections {
		parts[i] = s.String()
	}
	return strings.Join(parts, "\n\n")
}

// Sections returns the prompt's sections in their fixed order. The header
// is first and the guidelines are always last.
func Sections(p profile.Profile) []Section {
	first := strings.TrimSpace(p.FirstName)
	nick := p.DistinctNickname()

	header := p.DisplayName()
	addressee := first
	if nick != "" {
		header += " (" + nick + ")"
		addressee += " (" + nick + ")"
	}

	out := []Section{
		{Level: 1, Title: "AI Companion for " + header},
		section("ROLE & MISSION", fmt.Sprintf("You are a caring AI companion for **%s**.\n\n%s", addressee, missionText)),
	}

	var personality []string
	if v := strings.TrimSpace(p.Personality); v != "" {
		personality = append(personality, "**Their Personality:**\n"+v)
	}
	if v := strings.TrimSpace(p.CommunicationStyle); v != "" {
		personality = append(personality, "**Communication Style to Match:**\n"+v)
	}
	if len(personality) > 0 {
		out = append(out, section("PERSONALITY & COMMUNICATION", strings.Join(personality, "\n\n")))
	}

	if v := strings.TrimSpace(p.Backstory); v != "" {
		out = append(out, section("BACKGROUND", v))
	}
	if body := bulletList(p.Interests, func(s string) string { return "- " + s }); body != "" {
		out = append(out, section("INTERESTS & PASSIONS", body))
	}
	if v := strings.TrimSpace(p.CoreValues); v != "" {
		out = append(out, section("VALUES", v))
	}
	if v := strings.TrimSpace(p.CurrentSituation); v != "" {
		out = append(out, section("CURRENT SITUATION", v))
	}
	if body := peopleList(p.PeopleWhoMatter); body != "" {
		out = append(out, section("IMPORTANT PEOPLE", body))
	}
	if v := strings.TrimSpace(p.HealthInfo); v != "" {
		out = append(out, section("HEALTH CONTEXT", v+"\n\n"+healthNote))
	}
	if body := hookList(p.ConversationHooks); body != "" {
		out = append(out, section("CONVERSATION STARTERS", "Use these to encourage engagement:\n"+body))
	}
	if body := safetyContact(p); body != "" {
		out = append(out, section("SAFETY CONTACT", body))
	}

	return append(out, section("GUIDELINES", guidelinesText))
}

func section(title, body string) Section {
	return Section{Level: 2, Title: title, Body: body}
}

// bulletList renders list items with format; non-list values become one
// "- literal" line.
func bulletList(v profile.Value, format func(string) string) string {
	switch v := v.(type) {
	case profile.StringList:
		lines := make([]string, 0, len(v))
		for _, item := range v {
			lines = append(lines, format(item))
		}
		return strings.Join(lines, "\n")
	case profile.Text, profile.Unparsed:
		if lit := profile.Literal(v); lit != "" {
			return "- " + lit
		}
	}
	return ""
}

func hookList(v profile.Value) string {
	if _, ok := v.(profile.StringList); ok {
		return bulletList(v, func(s string) string { return `- "` + s + `"` })
	}
	return bulletList(v, nil)
}

func peopleList(v profile.Value) string {
	switch v := v.(type) {
	case profile.PersonList:
		lines := make([]string, 0, len(v))
		for _, person := range v {
			line := "- " + person.Name
			if person.Relation != "" {
				line += " (" + person.Relation + ")"
			}
			if person.Note != "" {
				line += ": " + person.Note
			}
			lines = append(lines, line)
		}
		return strings.Join(lines, "\n")
	case profile.Text, profile.Unparsed:
		if lit := profile.Literal(v); lit != "" {
			return "- " + lit
		}
	}
	return ""
}

func safetyContact(p profile.Profile) string {
	name := strings.TrimSpace(p.SafetyContactName)
	if name == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("**Primary Contact:** " + name)
	if rel := strings.TrimSpace(p.SafetyContactRelationship); rel != "" {
		b.WriteString(" (" + rel + ")")
	}
	if phone := strings.TrimSpace(p.SafetyContactPhone); phone != "" {
		b.WriteString("\n**Phone:** " + phone)
	}
	fmt.Fprintf(&b, "\n\n**Alert immediately if %s:**\n%s", strings.TrimSpace(p.FirstName), alertChecklist)
	return b.String()
}
