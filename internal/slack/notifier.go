package slack

import (
	"context"

	"github.com/prite36/farm-monitor/internal/models"
)

// PlantLookup resolves plant ids for message text.
type PlantLookup interface {
	Plant(id string) (models.Plant, bool)
}

// Notifier posts an alert whenever a plant gets a problem status.
type Notifier struct {
	client *Client
	plants PlantLookup
}

func NewNotifier(client *Client, plants PlantLookup) *Notifier {
	return &Notifier{client: client, plants: plants}
}

func (n *Notifier) Observe(ctx context.Context, entry models.EventEntry) {
	if n.client == nil {
		return
	}
	if entry.Type != models.EventProblemMarked && entry.Type != models.EventProblemReported {
		return
	}
	p, ok := n.plants.Plant(entry.PlantID)
	if !ok {
		p = models.Plant{ID: entry.PlantID}
	}
	go n.client.SendRichMessage(NewProblemMessage(p, entry))
}
