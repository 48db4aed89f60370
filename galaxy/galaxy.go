package galaxy

import (
	"encoding/binary"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/galacticai-space/galactic/models"
	"github.com/golang/geo/r3"
	"github.com/samber/lo"
)

const (
	// DefaultTransactionsPerGalaxy is the number of transactions grouped in a
	// galaxy.
	DefaultTransactionsPerGalaxy = 10

	// MinTailGalaxySize is the minimum number of leftover transactions that
	// form their own galaxy. Smaller leftovers are spread over the existing
	// galaxies.
	MinTailGalaxySize = 13
)

// Placement constants, in world units.
const (
	MinRadius      = 240
	MaxRadius      = 960
	VerticalSpread = 360
	SpiralFactor   = 6
)

// Galaxy is a group of transactions rendered as a single object.
type Galaxy struct {
	ID           string               `json:"id"`
	Transactions []models.Transaction `json:"transactions"`
	TotalAmount  float64              `json:"total_amount"`
}

// Group deduplicates transactions by hash, sorts them by decreasing amount and
// splits them into galaxies of perGalaxy transactions.
func Group(transactions []models.Transaction, perGalaxy int) []Galaxy {
	if perGalaxy <= 0 {
		perGalaxy = DefaultTransactionsPerGalaxy
	}

	// The first transaction seen for a hash wins, later duplicates are dropped.
	unique := lo.UniqBy(transactions, func(tx models.Transaction) string {
		return tx.Hash
	})
	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Amount > unique[j].Amount
	})

	var galaxies []Galaxy
	for len(unique) >= perGalaxy {
		galaxies = append(galaxies, newGalaxy(unique[:perGalaxy]))
		unique = unique[perGalaxy:]
	}

	if len(unique) == 0 {
		return galaxies
	}

	if len(unique) >= MinTailGalaxySize || len(galaxies) == 0 {
		return append(galaxies, newGalaxy(unique))
	}

	for i, tx := range unique {
		g := &galaxies[i%len(galaxies)]
		g.Transactions = append(g.Transactions, tx)
		g.TotalAmount += tx.Amount
	}
	return galaxies
}

func newGalaxy(transactions []models.Transaction) Galaxy {
	g := Galaxy{
		Transactions: append([]models.Transaction(nil), transactions...),
	}

	hashes := make([][]byte, 0, len(transactions))
	for _, tx := range transactions {
		hashes = append(hashes, []byte(tx.Hash))
		g.TotalAmount += tx.Amount
	}
	g.ID = crypto.Keccak256Hash(hashes...).Hex()[2:18]
	return g
}

// Place returns the position of the galaxy at index among total galaxies.
// Galaxies are laid out on stacked spiral layers. The jitter is seeded from
// the galaxy id so that a galaxy keeps its position across calls.
func Place(id string, index, total int) r3.Vector {
	if total <= 0 {
		total = 1
	}
	index = max(0, min(index, total-1))

	seed := crypto.Keccak256([]byte(id))
	r := rand.New(rand.NewPCG(
		binary.BigEndian.Uint64(seed[:8]),
		binary.BigEndian.Uint64(seed[8:16]),
	))

	layerSize := int(math.Ceil(math.Sqrt(float64(total))))
	layer := index / layerSize
	indexInLayer := index % layerSize
	layers := (total + layerSize - 1) / layerSize

	baseRadius := MinRadius + (MaxRadius-MinRadius)*float64(layer+1)/float64(layers)
	angleOffset := float64(layer)*math.Pi*0.5 + r.Float64()*math.Pi*0.25
	layerHeight := (float64(layer) - float64(total/layerSize)/2) * (VerticalSpread / 2)

	angle := float64(indexInLayer)/float64(layerSize)*math.Pi*2*SpiralFactor + angleOffset
	radius := baseRadius + (r.Float64()-0.5)*baseRadius*0.3

	return r3.Vector{
		X: math.Cos(angle) * radius,
		Y: layerHeight + (r.Float64()-0.5)*VerticalSpread,
		Z: math.Sin(angle) * radius,
	}
}

// Objects returns the indexable objects of the given galaxies. The weight of a
// galaxy is its number of transactions.
func Objects(galaxies []Galaxy) []models.Object {
	return lo.Map(galaxies, func(g Galaxy, i int) models.Object {
		return models.Object{
			ID:       g.ID,
			Position: Place(g.ID, i, len(galaxies)),
			Weight:   float64(len(g.Transactions)),
		}
	})
}
