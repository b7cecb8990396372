// Package parser turns raw bank extract exports into structured line items.
// Formats vary per bank in delimiter, column order and date layout.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Movement kinds as reported by the bank
const (
	TipoCredito = "credito"
	TipoDebito  = "debito"
)

var (
	ErrFormatoDesconocido = errors.New("unknown bank format")
	ErrExtractoVacio      = errors.New("extract is empty")
	ErrMontoInvalido      = errors.New("invalid amount format")
	ErrFechaInvalida      = errors.New("invalid date format")
)

// ParseError is a single malformed line. It is recovered locally: the line
// is skipped and the batch continues.
type ParseError struct {
	Linea  int
	Motivo error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("linea %d: %v", e.Linea, e.Motivo)
}

func (e *ParseError) Unwrap() error { return e.Motivo }

// Formato describes one bank's export layout
type Formato struct {
	ID             string
	Delimitador    rune
	SkipLines      int // header/metadata lines before data
	ColFecha       int
	ColConcepto    int
	ColMonto       int
	ColReferencia  int // -1 if the bank does not export a reference
	ColTipo        int // -1 if credit/debit is only distinguishable by sign
	FormatoFecha   string
	FormatoEuropeo bool     // 1.234,56 style
	ValoresCredito []string // tipo column values meaning incoming transfer
}

// formatos holds the known bank export layouts, keyed by bank id
var formatos = map[string]Formato{
	"galicia": {
		ID:             "galicia",
		Delimitador:    ';',
		SkipLines:      1,
		ColFecha:       0,
		ColConcepto:    1,
		ColMonto:       2,
		ColReferencia:  3,
		ColTipo:        4,
		FormatoFecha:   "02/01/2006",
		FormatoEuropeo: true,
		ValoresCredito: []string{"CR", "CREDITO", "CRÉDITO"},
	},
	"nacion": {
		ID:             "nacion",
		Delimitador:    ',',
		SkipLines:      2,
		ColFecha:       0,
		ColConcepto:    2,
		ColMonto:       3,
		ColReferencia:  1,
		ColTipo:        -1,
		FormatoFecha:   "2006-01-02",
		FormatoEuropeo: false,
	},
	"santander": {
		ID:             "santander",
		Delimitador:    ';',
		SkipLines:      1,
		ColFecha:       0,
		ColConcepto:    1,
		ColMonto:       3,
		ColReferencia:  2,
		ColTipo:        -1,
		FormatoFecha:   "02-01-2006",
		FormatoEuropeo: true,
	},
}

// FormatoPorBanco returns the layout registered for a bank id
func FormatoPorBanco(banco string) (Formato, error) {
	f, ok := formatos[strings.ToLower(strings.TrimSpace(banco))]
	if !ok {
		return Formato{}, fmt.Errorf("%w: %q", ErrFormatoDesconocido, banco)
	}
	return f, nil
}

// Linea is one parsed extract line
type Linea struct {
	Fecha          time.Time
	Concepto       string
	Monto          int64 // centavos, positive
	Referencia     *string
	TipoMovimiento string
}

// Resultado holds the outcome of parsing one extract: all successfully
// parsed credit lines, plus counts of what was dropped and why.
type Resultado struct {
	Lineas     []Linea
	Descartes  int // debit/fee lines filtered out
	Omitidas   int // malformed lines skipped
	Errores    []*ParseError
}

// ParseExtracto parses a raw extract with the given bank layout. Malformed
// lines are collected as errors without aborting the batch; only credit
// movements are retained.
func ParseExtracto(data []byte, formato Formato) (*Resultado, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrExtractoVacio
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = formato.Delimitador
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	resultado := &Resultado{}
	lineNum := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			resultado.Errores = append(resultado.Errores, &ParseError{Linea: lineNum, Motivo: err})
			resultado.Omitidas++
			continue
		}
		if lineNum <= formato.SkipLines {
			continue
		}
		if esLineaVacia(record) {
			continue
		}

		linea, perr := parseLinea(record, formato, lineNum)
		if perr != nil {
			resultado.Errores = append(resultado.Errores, perr)
			resultado.Omitidas++
			continue
		}

		if linea.TipoMovimiento != TipoCredito {
			resultado.Descartes++
			continue
		}
		resultado.Lineas = append(resultado.Lineas, *linea)
	}

	return resultado, nil
}

func parseLinea(record []string, formato Formato, lineNum int) (*Linea, *ParseError) {
	maxCol := len(record) - 1
	if formato.ColFecha > maxCol || formato.ColConcepto > maxCol || formato.ColMonto > maxCol {
		return nil, &ParseError{Linea: lineNum, Motivo: errors.New("column index out of bounds")}
	}

	fecha, err := time.ParseInLocation(formato.FormatoFecha, strings.TrimSpace(record[formato.ColFecha]), time.UTC)
	if err != nil {
		return nil, &ParseError{Linea: lineNum, Motivo: fmt.Errorf("%w: %q", ErrFechaInvalida, record[formato.ColFecha])}
	}

	concepto := collapseSpaces(record[formato.ColConcepto])
	if concepto == "" {
		return nil, &ParseError{Linea: lineNum, Motivo: errors.New("empty concepto")}
	}

	monto, err := ParseMonto(record[formato.ColMonto], formato.FormatoEuropeo)
	if err != nil {
		return nil, &ParseError{Linea: lineNum, Motivo: fmt.Errorf("%w: %q", err, record[formato.ColMonto])}
	}
	if monto == 0 {
		return nil, &ParseError{Linea: lineNum, Motivo: errors.New("zero amount")}
	}

	tipo := tipoMovimiento(record, formato, monto)
	if monto < 0 {
		monto = -monto
	}

	var referencia *string
	if formato.ColReferencia >= 0 && formato.ColReferencia <= maxCol {
		if ref := strings.TrimSpace(record[formato.ColReferencia]); ref != "" {
			referencia = &ref
		}
	}

	return &Linea{
		Fecha:          fecha,
		Concepto:       concepto,
		Monto:          monto,
		Referencia:     referencia,
		TipoMovimiento: tipo,
	}, nil
}

// tipoMovimiento classifies a line as credit or debit, preferring the bank's
// explicit tipo column and falling back to the amount sign.
func tipoMovimiento(record []string, formato Formato, monto int64) string {
	if formato.ColTipo >= 0 && formato.ColTipo < len(record) {
		valor := strings.ToUpper(strings.TrimSpace(record[formato.ColTipo]))
		for _, credito := range formato.ValoresCredito {
			if valor == credito {
				return TipoCredito
			}
		}
		return TipoDebito
	}
	if monto > 0 {
		return TipoCredito
	}
	return TipoDebito
}

// ParseMonto converts an amount string to centavos. Supports both European
// (1.234,56) and American (1,234.56) separators; currency symbols and other
// noise are stripped.
func ParseMonto(raw string, europeo bool) (int64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == ',' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, raw)

	if cleaned == "" || cleaned == "-" {
		return 0, nil
	}

	negativo := strings.HasPrefix(cleaned, "-")
	cleaned = strings.TrimPrefix(cleaned, "-")

	if europeo {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, ErrMontoInvalido
	}

	centavos := int64(math.Round(val * 100))
	if negativo {
		centavos = -centavos
	}
	return centavos, nil
}

func esLineaVacia(record []string) bool {
	for _, campo := range record {
		if strings.TrimSpace(campo) != "" {
			return false
		}
	}
	return true
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
