package oracle

// signed.go — verificación de precios firmados.
//
// Un publicador firma con su clave secp256k1 el digest
//
//	keccak256("pricepool/price/v1" ‖ feedID[32] ‖ price ‖ conf ‖ expo ‖ publishTime)
//
// (enteros big-endian: int64, uint64, int32, int64 unix). El verificador
// recupera la dirección firmante con ecrecover y la compara con la allowlist.

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/pricepool/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const digestDomain = "pricepool/price/v1"

// Signed verifica que la observación venga firmada por un publicador autorizado,
// que sea del feed del mercado y que no sea anterior al deadline menos MaxAge.
type Signed struct {
	signers map[common.Address]bool
	maxAge  time.Duration
}

// NewSigned crea un verificador con las direcciones hex dadas (0x…).
// maxAge <= 0 desactiva el chequeo de antigüedad.
func NewSigned(signers []string, maxAge time.Duration) (*Signed, error) {
	if len(signers) == 0 {
		return nil, fmt.Errorf("oracle.NewSigned: no signers configured")
	}
	s := &Signed{signers: make(map[common.Address]bool, len(signers)), maxAge: maxAge}
	for _, addr := range signers {
		addr = strings.TrimSpace(addr)
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("oracle.NewSigned: invalid signer address %q", addr)
		}
		s.signers[common.HexToAddress(addr)] = true
	}
	return s, nil
}

// Verify devuelve un error que envuelve domain.ErrPriceRejected si la observación no vale.
func (s *Signed) Verify(_ context.Context, m domain.Market, obs domain.PriceObservation) error {
	if m.FeedID != "" && !strings.EqualFold(m.FeedID, obs.FeedID) {
		return fmt.Errorf("%w: feed %s does not match market feed %s", domain.ErrPriceRejected, obs.FeedID, m.FeedID)
	}
	if s.maxAge > 0 && obs.PublishTime.Before(m.EndTime.Add(-s.maxAge)) {
		return fmt.Errorf("%w: published at %s, more than %s before deadline %s",
			domain.ErrPriceRejected, obs.PublishTime.Format(time.RFC3339), s.maxAge, m.EndTime.Format(time.RFC3339))
	}

	signer, err := RecoverSigner(obs)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPriceRejected, err)
	}
	if !s.signers[signer] {
		return fmt.Errorf("%w: signer %s not allowed", domain.ErrPriceRejected, signer.Hex())
	}
	return nil
}

// Digest devuelve el hash que firma el publicador.
func Digest(obs domain.PriceObservation) ([]byte, error) {
	feed, err := domain.FeedIDBytes(obs.FeedID)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(digestDomain)+32+8+8+4+8)
	buf = append(buf, digestDomain...)
	buf = append(buf, feed[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(obs.Price))
	buf = binary.BigEndian.AppendUint64(buf, obs.Conf)
	buf = binary.BigEndian.AppendUint32(buf, uint32(obs.Expo))
	buf = binary.BigEndian.AppendUint64(buf, uint64(obs.PublishTime.Unix()))
	return crypto.Keccak256(buf), nil
}

// Sign firma la observación con key y devuelve la firma [R ‖ S ‖ V] de 65 bytes.
func Sign(obs domain.PriceObservation, key *ecdsa.PrivateKey) ([]byte, error) {
	digest, err := Digest(obs)
	if err != nil {
		return nil, fmt.Errorf("oracle.Sign: %w", err)
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("oracle.Sign: %w", err)
	}
	return sig, nil
}

// RecoverSigner devuelve la dirección que firmó la observación.
// Acepta V en {0,1} o {27,28}.
func RecoverSigner(obs domain.PriceObservation) (common.Address, error) {
	if len(obs.Signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(obs.Signature))
	}
	digest, err := Digest(obs)
	if err != nil {
		return common.Address{}, err
	}

	sig := make([]byte, len(obs.Signature))
	copy(sig, obs.Signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
