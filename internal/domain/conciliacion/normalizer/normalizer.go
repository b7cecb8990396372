// Package normalizer extracts payer identity signals from free-text bank
// concepts and computes stable movement fingerprints for duplicate detection.
package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Identidad holds the best-effort identity fields extracted from a concept.
// Absence of a signal is nil, never an error: "not extracted" must stay
// distinguishable from "extracted as empty".
type Identidad struct {
	Apellido   *string
	Nombre     *string
	CUIT       *string
	DNI        *string
	Referencia *string
}

var (
	cuitGuionRe  = regexp.MustCompile(`\b(\d{2})-(\d{8})-(\d)\b`)
	cuitPegadoRe = regexp.MustCompile(`\b(\d{11})\b`)
	dniRe        = regexp.MustCompile(`\b(\d{7,8})\b`)
	refRe        = regexp.MustCompile(`\b(?:REF|REFERENCIA|NRO|OP|COMP)[.:\s]*([A-Z0-9-]{4,})\b`)
	espaciosRe   = regexp.MustCompile(`\s+`)
)

// Bank boilerplate stripped before name extraction
var boilerplate = []string{
	"TRANSFERENCIA RECIBIDA", "TRANSFERENCIA DE", "TRANSFERENCIA",
	"TRANSF DE", "TRANSF.", "TRANSF",
	"CR TRANSF", "ACREDITACION", "ACREDITACIÓN", "DEPOSITO", "DEPÓSITO",
	"CUIT", "CUIL", "DNI", "CBU", "CVU", "ALIAS", "CTA", "VARIOS",
	"INMEDIATA", "RECIBIDA", "BANCO", "DE",
}

// ExtraerIdentidad derives payer identity fields from a free-text concept.
// Extraction is deterministic and best-effort: the same concept always
// yields the same fields.
func ExtraerIdentidad(concepto string) Identidad {
	var id Identidad
	texto := strings.ToUpper(collapse(concepto))

	// CUIT: NN-NNNNNNNN-N, or 11 contiguous digits normalized to that form
	if m := cuitGuionRe.FindStringSubmatch(texto); m != nil {
		cuit := m[1] + "-" + m[2] + "-" + m[3]
		id.CUIT = &cuit
		texto = strings.Replace(texto, m[0], " ", 1)
	} else if m := cuitPegadoRe.FindStringSubmatch(texto); m != nil {
		cuit := m[1][:2] + "-" + m[1][2:10] + "-" + m[1][10:]
		id.CUIT = &cuit
		texto = strings.Replace(texto, m[0], " ", 1)
	}

	// Reference code before DNI: reference digits must not be mistaken for a document
	if m := refRe.FindStringSubmatch(texto); m != nil {
		ref := m[1]
		id.Referencia = &ref
		texto = strings.Replace(texto, m[0], " ", 1)
	}

	// DNI: standalone 7-8 digit token (CUIT digits were already removed)
	if m := dniRe.FindStringSubmatch(texto); m != nil {
		dni := m[1]
		id.DNI = &dni
		texto = strings.Replace(texto, m[0], " ", 1)
	}

	apellido, nombre := extraerNombre(texto)
	id.Apellido = apellido
	id.Nombre = nombre

	return id
}

// extraerNombre keeps the alphabetic tokens left after stripping boilerplate
// and treats the last one as the surname. Single-token remainders are
// returned as surname only.
func extraerNombre(texto string) (apellido, nombre *string) {
	for _, frase := range boilerplate {
		texto = strings.ReplaceAll(" "+texto+" ", " "+frase+" ", " ")
		texto = strings.TrimSpace(texto)
	}

	var tokens []string
	for _, tok := range strings.Fields(texto) {
		if esAlfabetico(tok) {
			tokens = append(tokens, tok)
		}
	}

	switch len(tokens) {
	case 0:
		return nil, nil
	case 1:
		return &tokens[0], nil
	default:
		a := tokens[len(tokens)-1]
		n := strings.Join(tokens[:len(tokens)-1], " ")
		return &a, &n
	}
}

func esAlfabetico(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

var acentos = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ü", "U", "Ñ", "N",
)

// Normalizar lowercases, strips accents and collapses whitespace.
// Used for both name comparison and hashing, so it must stay
// locale-independent and stable.
func Normalizar(s string) string {
	return strings.ToLower(acentos.Replace(collapse(s)))
}

// GenerarHash computes the stable fingerprint of a movement: ISO date,
// fixed two-decimal amount and the normalized concept. Two movements with
// the same hash are the same bank event, even across import batches.
func GenerarHash(fecha time.Time, monto int64, concepto string) string {
	canonical := fmt.Sprintf("%s|%d.%02d|%s",
		fecha.Format("2006-01-02"), monto/100, monto%100, Normalizar(concepto))
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func collapse(s string) string {
	return strings.TrimSpace(espaciosRe.ReplaceAllString(s, " "))
}
