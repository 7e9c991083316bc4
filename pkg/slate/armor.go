package slate

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	armorHeader = "BEGINSLATEPACK"
	armorFooter = "ENDSLATEPACK"
	wordSize    = 15
	lineWords   = 200
)

var (
	// ErrInvalidArmor ...
	ErrInvalidArmor = errors.New("armored slate is malformed")
	// ErrChecksumMismatch ...
	ErrChecksumMismatch = errors.New("armored slate checksum does not match")
)

// Armor encodes the slate in the human friendly slatepack format:
// base58(checksum || json) split in words between a header and a footer.
func Armor(s Slate) (string, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	sum := checksum(payload)
	encoded := base58.Encode(append(sum[:], payload...))

	var b strings.Builder
	b.WriteString(armorHeader + ". ")
	for i := 0; i < len(encoded); i += wordSize {
		end := i + wordSize
		if end > len(encoded) {
			end = len(encoded)
		}
		if i > 0 {
			if (i/wordSize)%lineWords == 0 {
				b.WriteString("\n")
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString(encoded[i:end])
	}
	b.WriteString(". " + armorFooter + ".")
	return b.String(), nil
}

// Decode parses a slate either in armored form or as plain json, and
// validates it.
func Decode(data string) (Slate, error) {
	data = strings.TrimSpace(data)

	var payload []byte
	if strings.HasPrefix(data, "{") {
		payload = []byte(data)
	} else {
		var err error
		if payload, err = dearmor(data); err != nil {
			return Slate{}, err
		}
	}

	var s Slate
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Slate{}, fmt.Errorf("%w: %s", ErrInvalidSlate, err)
	}
	if err := s.Validate(); err != nil {
		return Slate{}, err
	}
	return s, nil
}

func dearmor(data string) ([]byte, error) {
	if !strings.HasPrefix(data, armorHeader+".") ||
		!strings.HasSuffix(data, armorFooter+".") {
		return nil, ErrInvalidArmor
	}
	body := strings.TrimSuffix(strings.TrimPrefix(data, armorHeader+"."), armorFooter+".")
	body = strings.TrimSpace(body)
	if !strings.HasSuffix(body, ".") {
		return nil, ErrInvalidArmor
	}
	body = strings.Join(strings.Fields(strings.TrimSuffix(body, ".")), "")

	raw := base58.Decode(body)
	if len(raw) <= 4 {
		return nil, ErrInvalidArmor
	}
	sum, payload := raw[:4], raw[4:]
	expected := checksum(payload)
	if !bytes.Equal(sum, expected[:]) {
		return nil, ErrChecksumMismatch
	}
	return payload, nil
}

func checksum(payload []byte) [4]byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	var sum [4]byte
	copy(sum[:], second[:4])
	return sum
}
