package prompt

import (
	"github.com/jasper0315/icebreak-app/internal/phase"
	"github.com/jasper0315/icebreak-app/internal/session"
)

// Turn roles follow the model provider's convention: the facilitator
// persona speaks as "model", participants as "user".
const (
	RoleFacilitator = "model"
	RoleParticipant = "user"
)

// Turn is one role-attributed entry in the exchange sent to the model.
type Turn struct {
	Role string
	Text string
}

// Persona is the fixed system-level description of the facilitator,
// prepended to every model invocation. It is never shown to users.
const Persona = "あなたは交流会の進行役AI「アイスブレイクくん」です。" +
	"参加者が打ち解けられるように、明るく丁寧な口調で会話を進めてください。" +
	"一度の発言は2〜3文までにし、必ず参加者に話を返してください。"

var instructions = map[phase.Phase]string{
	phase.IntroStart:      "最初の参加者に、名前と所属を添えて自己紹介をするよう促してください。",
	phase.IntroReacting:   "直前の自己紹介にひとこと反応し、フォローアップの質問をひとつだけしてください。",
	phase.IntroNextPerson: "今の方にお礼を伝え、次の参加者に自己紹介をお願いしてください。",
	phase.IcebreakStart:   "自己紹介が一通り終わったことを伝え、ここからは自由な会話に移ると宣言してください。",
	phase.RandomTheme:     "場が和むような雑談テーマをひとつ提示し、参加者全員に話を振ってください。",
	phase.DeepDive:        "いま出ている話題を深掘りし、参加者同士が話しやすいように会話をつないでください。",
}

// InstructionFor returns the fixed facilitator directive for a phase.
func InstructionFor(p phase.Phase) string {
	return instructions[p]
}

// BuildExchange assembles the full turn sequence for one model call:
// persona, the current phase directive, then the entire message log in
// chronological order. The provider requires the sequence to end on a
// participant turn, so an empty one is appended when the log ends on
// the facilitator side (or is empty).
func BuildExchange(messages []session.Message, p phase.Phase) []Turn {
	turns := make([]Turn, 0, len(messages)+3)
	turns = append(turns,
		Turn{Role: RoleFacilitator, Text: Persona},
		Turn{Role: RoleFacilitator, Text: InstructionFor(p)},
	)
	for _, m := range messages {
		role := RoleParticipant
		if m.Role == session.RoleAssistant {
			role = RoleFacilitator
		}
		turns = append(turns, Turn{Role: role, Text: m.Content})
	}
	if turns[len(turns)-1].Role == RoleFacilitator {
		turns = append(turns, Turn{Role: RoleParticipant, Text: ""})
	}
	return turns
}
