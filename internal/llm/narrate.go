package llm

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chaosdojo/chaosdojo/internal/chaos"
	"github.com/chaosdojo/chaosdojo/internal/metrics"
	"github.com/chaosdojo/chaosdojo/internal/scenario"
)

const systemInstruction = `You are a site reliability engineer teaching Kubernetes failure modes.
Given the outcome of a chaos action, explain in plain language what the cluster
does to recover, what a user would observe, and one lesson to take away.
Keep it under four paragraphs. Do not invent cluster state you were not given.`

// FallbackAnalysis is served when the narration endpoint cannot be reached.
const FallbackAnalysis = "Analysis unavailable: the narration service could not be reached."

// Narrator turns an action outcome into teaching prose via the chat endpoint.
type Narrator struct {
	Client Client
	Logger logrus.FieldLogger
}

// NewNarrator builds a narrator over the given client.
func NewNarrator(client Client, logger logrus.FieldLogger) *Narrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Narrator{Client: client, Logger: logger}
}

// Narrate requests prose for one run. The score for the scenario comes from
// the static catalog, never from here, and never depends on res.Success.
func (n *Narrator) Narrate(ctx context.Context, sc scenario.Scenario, res chaos.Result) (string, error) {
	prompt := sc.RenderPrompt(res.Message, res.Details)

	start := time.Now()
	text, err := n.Client.Complete(ctx, systemInstruction, prompt)
	metrics.NarrationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		n.Logger.WithError(err).WithField("scenario", sc.ID).Warn("narration failed")
		return "", err
	}
	return text, nil
}
