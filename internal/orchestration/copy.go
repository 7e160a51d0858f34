package orchestration

import (
	"fmt"
	"strings"
)

// CopyDeck holds the contextual copy the controller hands the presentation
// layer alongside phase changes. The Active lines rotate on a fixed interval
// and carry no control-flow weight.
type CopyDeck struct {
	HeldSafe           string
	Active             []string
	StillWorking       string
	CompleteTransition string
	TimedOut           string
}

// DefaultCopyDeck returns the static copy set, personalized with the
// companion's display name. Used whenever no generated deck is available.
func DefaultCopyDeck(pigDisplayName string) CopyDeck {
	name := strings.TrimSpace(pigDisplayName)
	if name == "" {
		name = "your companion"
	}
	return CopyDeck{
		HeldSafe: fmt.Sprintf("Your words are held safe with %s.", name),
		Active: []string{
			fmt.Sprintf("%s is sitting with what you shared.", name),
			"Nothing to do right now. Just breathe.",
			fmt.Sprintf("%s is listening between the lines.", name),
			"Some feelings take a moment to find their shape.",
			fmt.Sprintf("%s hasn't forgotten you. Good things are slow.", name),
		},
		StillWorking:       fmt.Sprintf("%s is taking a little longer than usual. Still here with you.", name),
		CompleteTransition: fmt.Sprintf("%s has something for you.", name),
		TimedOut:           fmt.Sprintf("%s needs more time tonight. Your reflection is safe, and nothing is lost.", name),
	}
}

// Validate checks a deck has the lines the controller rotates through.
func (d CopyDeck) Validate() error {
	if len(d.Active) == 0 {
		return fmt.Errorf("copy deck requires at least one active line")
	}
	return nil
}
