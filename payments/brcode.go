package payments

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrFieldTooLong = errors.New("pix field longer than 99 characters")
	ErrInvalidKey   = errors.New("pix key must be non-empty ascii")
)

// BRCode renders a static PIX payload in the EMV merchant-presented layout.
type BRCode struct {
	Key          string
	MerchantName string
	MerchantCity string
	Amount       decimal.Decimal
	TxID         string
}

type tlv struct {
	id, value string
}

// encode joins fields as id, two-digit length, value. Values are ascii, so
// the byte length is the character length.
func encode(fields ...tlv) (string, error) {
	var sb strings.Builder
	for _, f := range fields {
		if len(f.value) > 99 {
			return "", fmt.Errorf("%w: field %s has %d", ErrFieldTooLong, f.id, len(f.value))
		}
		fmt.Fprintf(&sb, "%s%02d%s", f.id, len(f.value), f.value)
	}
	return sb.String(), nil
}

func (b BRCode) Encode() (string, error) {
	if b.Key == "" || !isASCII(b.Key) {
		return "", ErrInvalidKey
	}

	account, err := encode(tlv{"00", "br.gov.bcb.pix"}, tlv{"01", b.Key})
	if err != nil {
		return "", err
	}
	additional, err := encode(tlv{"05", clip(alnum(b.TxID), 25)})
	if err != nil {
		return "", err
	}

	fields := []tlv{{"00", "01"}, {"26", account}, {"52", "0000"}, {"53", "986"}}
	if b.Amount.IsPositive() {
		fields = append(fields, tlv{"54", b.Amount.StringFixed(2)})
	}
	fields = append(fields,
		tlv{"58", "BR"},
		tlv{"59", clip(ascii(b.MerchantName), 25)},
		tlv{"60", clip(ascii(b.MerchantCity), 15)},
		tlv{"62", additional},
	)

	payload, err := encode(fields...)
	if err != nil {
		return "", err
	}
	payload += "6304"
	return payload + fmt.Sprintf("%04X", crc16(payload)), nil
}

// crc16 is CRC-16/CCITT-FALSE, the checksum PIX payloads carry in field 63.
func crc16(s string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// ascii strips accents and drops whatever is still outside printable ascii.
func ascii(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) || r < 0x20 || r > 0x7E {
			return -1
		}
		return r
	}, norm.NFD.String(s))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7E {
			return false
		}
	}
	return true
}

func alnum(s string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, s)
}
