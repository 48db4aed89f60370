package galaxy

import (
	"encoding/binary"
	"math"
	"math/rand/v2"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/galacticai-space/galactic/models"
)

// Synthesize returns n pseudo random token transfers. The same seed always
// produces the same transfers; the i-th transfer is timestamped i seconds
// before now.
func Synthesize(n int, seed uint64, now time.Time) []models.Transaction {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	wallets := make([]common.Address, max(2, int(math.Sqrt(float64(n)))))
	for i := range wallets {
		wallets[i] = common.BytesToAddress(crypto.Keccak256(binary.BigEndian.AppendUint64(nil, r.Uint64()))[12:])
	}

	transactions := make([]models.Transaction, n)
	for i := range transactions {
		var nonce [16]byte
		binary.BigEndian.PutUint64(nonce[:8], seed)
		binary.BigEndian.PutUint64(nonce[8:], uint64(i))

		from := r.IntN(len(wallets))
		to := (from + 1 + r.IntN(len(wallets)-1)) % len(wallets)

		transactions[i] = models.Transaction{
			Hash:      crypto.Keccak256Hash(nonce[:]).Hex(),
			From:      wallets[from].Hex(),
			To:        wallets[to].Hex(),
			Amount:    max(0.01, math.Round(math.Exp(r.NormFloat64()*2+4)*100)/100),
			Timestamp: now.Add(-time.Duration(i) * time.Second),
		}
	}
	return transactions
}
