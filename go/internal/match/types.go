package match

import (
	"fmt"
	"strings"
	"time"

	"github.com/lila-games/xoxo/go/internal/events"
	"github.com/lila-games/xoxo/go/internal/mark"
)

// Phase is the synchronizer's position in the match lifecycle
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseJoining
	PhaseWaiting
	PhaseInProgress
	PhaseConcluded
	// PhaseOpponentLeft is terminal for the match
	PhaseOpponentLeft
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseJoining:
		return "JOINING"
	case PhaseWaiting:
		return "WAITING"
	case PhaseInProgress:
		return "IN_PROGRESS"
	case PhaseConcluded:
		return "CONCLUDED"
	case PhaseOpponentLeft:
		return "OPPONENT_LEFT"
	}
	return "UNKNOWN"
}

// MarshalText writes the phase name
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Display status texts
const (
	StatusIdle          = "not in a match"
	StatusJoining       = "joining"
	StatusWaiting       = "waiting"
	StatusOpponentFound = "opponent found, starting"
	StatusYourTurn      = "your turn"
	StatusOpponentTurn  = "opponent's turn"
	StatusDraw          = "draw"
	StatusMoveSent      = "move sent"
	StatusOpponentLeft  = "opponent left"
)

func turnStatus(m mark.Mark) string {
	return fmt.Sprintf("%s's turn", m)
}

func winStatus(m mark.Mark) string {
	return fmt.Sprintf("%s wins", m)
}

// Board holds the nine cells, row-major
type Board [events.BoardSize]mark.Mark

// Full reports whether every cell is occupied
func (b Board) Full() bool {
	for _, c := range b {
		if !c.Valid() {
			return false
		}
	}
	return true
}

// Empty reports whether the cell at i is unoccupied. Out-of-range cells are
// never empty.
func (b Board) Empty(i int) bool {
	if i < 0 || i >= len(b) {
		return false
	}
	return !b[i].Valid()
}

// String renders the board as three rows, numbering empty cells
func (b Board) String() string {
	var sb strings.Builder
	for row := 0; row < 3; row++ {
		if row > 0 {
			sb.WriteString("\n---+---+---\n")
		}
		for col := 0; col < 3; col++ {
			if col > 0 {
				sb.WriteString("|")
			}
			i := row*3 + col
			if b[i].Valid() {
				fmt.Fprintf(&sb, " %s ", b[i])
			} else {
				fmt.Fprintf(&sb, " %d ", i)
			}
		}
	}
	return sb.String()
}

// Session is the joined match and the local player's place in it
type Session struct {
	MatchID       string
	LocalPlayerID string
	// LocalMark is set from the first snapshot that assigns one and is never
	// overwritten for the rest of the match
	LocalMark mark.Mark
	JoinedAt  time.Time
}

// TurnState is replaced wholesale by every snapshot
type TurnState struct {
	TurnMark mark.Mark
	Winner   events.Winner
	Timing   events.TimingKind
	Deadline time.Time
}

// PendingMove is an optimistic move awaiting the next snapshot
type PendingMove struct {
	CellIndex     int       `json:"cell"`
	PredictedMark mark.Mark `json:"predicted_mark"`
	DispatchedAt  time.Time `json:"dispatched_at"`
}

// Roster is the set of participants currently in the match
type Roster map[string]struct{}

func (r Roster) add(id string) {
	if id != "" {
		r[id] = struct{}{}
	}
}

func (r Roster) remove(id string) {
	delete(r, id)
}

// IDs returns the participant ids in no particular order
func (r Roster) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	return ids
}

// View is an immutable copy of the synchronizer's state for display
type View struct {
	MatchID          string       `json:"match_id,omitempty"`
	LocalPlayerID    string       `json:"local_player_id,omitempty"`
	LocalMark        mark.Mark    `json:"local_mark"`
	Phase            Phase        `json:"phase"`
	Board            Board        `json:"board"`
	TurnMark         mark.Mark    `json:"turn"`
	Winner           mark.Mark    `json:"winner"`
	Draw             bool         `json:"draw"`
	Status           string       `json:"status"`
	Notice           string       `json:"notice,omitempty"`
	Pending          *PendingMove `json:"pending,omitempty"`
	Participants     []string     `json:"participants,omitempty"`
	Deadline         *time.Time   `json:"deadline,omitempty"`
	RemainingSeconds int          `json:"remaining_sec"`
}
