package ai

import (
	"fmt"
	"strings"
	"time"

	"meetdraft/internal/classify"
	"meetdraft/internal/model"
)

// BuildPrompt builds the system and user prompts for follow-up-email
// generation from the meeting metadata, the detected context and the
// transcript.
func BuildPrompt(meeting *model.Meeting, transcript string, ctx classify.Result) (string, string) {
	systemPrompt := `You are an assistant that drafts follow-up emails after business meetings.
You must be accurate, neutral and grounded in the transcript.
Do NOT invent facts, commitments or numbers that are not in the transcript.
Write in the voice of the meeting host, addressed to the other participants.
Return valid JSON only. Every field is mandatory; use empty arrays when nothing applies.`

	var names []string
	for _, p := range meeting.Participants {
		if p.Name != "" {
			names = append(names, p.Name)
		}
	}

	var meta strings.Builder
	fmt.Fprintf(&meta, "Topic: %s\n", meeting.Topic)
	if meeting.StartTime != nil {
		fmt.Fprintf(&meta, "Date: %s\n", meeting.StartTime.Format(time.DateOnly))
	}
	if meeting.DurationMinutes > 0 {
		fmt.Fprintf(&meta, "Duration: %d minutes\n", meeting.DurationMinutes)
	}
	if len(names) > 0 {
		fmt.Fprintf(&meta, "Participants: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&meta, "Meeting type: %s\n", ctx.MeetingType)
	fmt.Fprintf(&meta, "Tone: %s\n", ctx.Tone)

	userPrompt := fmt.Sprintf(`Meeting details:
%s
Transcript:
"""
%s
"""

Task:
1. Write an email subject that names a concrete topic or outcome of this meeting.
2. Write the email body: greeting, a short recap of what was discussed and decided, next steps, and a closing call to action. Match the detected tone (%s). 50-300 words, multiple paragraphs.
3. Extract action items with owner and deadline where the transcript states them. Use an empty array if none were agreed.
4. Extract the key points actually discussed (facts, numbers, names, commitments).

Return JSON exactly in this shape (all fields required, empty array [] when there is no data):

{
  "subject": "…",
  "body": "…",
  "action_items": [
    {"owner": "Name", "task": "What has to be done", "deadline": "Friday"}
  ],
  "key_points": ["point 1", "point 2"]
}`, meta.String(), transcript, ctx.Tone)

	return systemPrompt, userPrompt
}
