package knowledge

import (
	"time"

	"github.com/biodoia/agentmesh/pkg/models"
)

// BuildTree aggrega le card di un cliente nell'albero a quattro strati.
// Per ogni card type sopravvive solo la card attiva con versione più
// alta. La popolazione parziale è uno stato valido: gli strati senza
// card restano con Present=false.
func BuildTree(clientID string, cards []models.ClientCard) *models.ClientKnowledgeTree {
	tree := &models.ClientKnowledgeTree{
		ClientID: clientID,
		BuiltAt:  time.Now().UTC(),
	}

	for _, card := range cards {
		if !card.IsActive || card.ClientID != clientID {
			continue
		}

		layer := tree.Layer(models.LayerOf(card.Type))
		if layer.Cards == nil {
			layer.Cards = make(map[models.CardType]models.ClientCard)
		}

		// Versione più alta vince
		if existing, ok := layer.Cards[card.Type]; ok && existing.Version >= card.Version {
			continue
		}
		layer.Cards[card.Type] = card
		layer.Present = true

		if card.Version > tree.Version {
			tree.Version = card.Version
		}
	}

	return tree
}
