// Package matcher scores bank movements against the member registry using
// a tiered confidence scheme (A highest, F none).
package matcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/clubnautico/gestion/internal/domain/conciliacion/normalizer"
	"github.com/clubnautico/gestion/internal/domain/socio"
)

// Confidence tiers, evaluated in order; the first matching tier wins.
const (
	NivelA = "A" // exact CUIT/CUIL, registered or learned keyword
	NivelB = "B" // exact DNI
	NivelC = "C" // exact normalized full name, single candidate
	NivelD = "D" // fuzzy name, single candidate
	NivelE = "E" // ambiguous: several plausible candidates
	NivelF = "F" // no signal matched anyone
)

// Tier confidence percentages
const (
	confianzaA = 100
	confianzaB = 95
	confianzaC = 80
	confianzaE = 30
)

// Resultado is the matcher's verdict for one movement. Tier E carries the
// candidate list and no selected member; tier F carries nothing. The
// matcher never auto-selects among equally scored candidates.
type Resultado struct {
	SocioID    *uuid.UUID
	Nivel      string
	Confianza  int
	Razon      string
	Candidatos []uuid.UUID
}

// Matcher holds the indexed member registry for one import batch
type Matcher struct {
	socios     []*socio.Socio
	porCUIT    map[string]*socio.Socio
	porDNI     map[string]*socio.Socio
	porNombre  map[string][]*socio.Socio
	porKeyword map[string]*socio.Socio
}

// New indexes the active-member registry and learned keywords
func New(socios []*socio.Socio, keywords []*socio.Keyword) *Matcher {
	m := &Matcher{
		socios:     socios,
		porCUIT:    make(map[string]*socio.Socio),
		porDNI:     make(map[string]*socio.Socio),
		porNombre:  make(map[string][]*socio.Socio),
		porKeyword: make(map[string]*socio.Socio),
	}

	porID := make(map[uuid.UUID]*socio.Socio, len(socios))
	for _, s := range socios {
		porID[s.ID] = s
		if s.CUIT != nil {
			m.porCUIT[soloDigitos(*s.CUIT)] = s
		}
		if s.DNI != nil {
			m.porDNI[soloDigitos(*s.DNI)] = s
		}
		clave := claveNombre(s.Apellido + " " + s.Nombre)
		m.porNombre[clave] = append(m.porNombre[clave], s)
	}

	for _, k := range keywords {
		if k.Tipo != socio.KeywordTipoCUIT {
			continue
		}
		if s, ok := porID[k.SocioID]; ok {
			m.porKeyword[soloDigitos(k.Valor)] = s
		}
	}

	return m
}

// Match scores one normalized movement against the registry
func (m *Matcher) Match(id normalizer.Identidad) Resultado {
	// Tier A: CUIT against registered values or learned keywords
	if id.CUIT != nil {
		cuit := soloDigitos(*id.CUIT)
		if s, ok := m.porCUIT[cuit]; ok {
			return seleccion(s, NivelA, confianzaA, "CUIT registrado")
		}
		if s, ok := m.porKeyword[cuit]; ok {
			return seleccion(s, NivelA, confianzaA, "CUIT aprendido")
		}
	}

	// Tier B: DNI
	if id.DNI != nil {
		if s, ok := m.porDNI[soloDigitos(*id.DNI)]; ok {
			return seleccion(s, NivelB, confianzaB, "DNI registrado")
		}
	}

	nombreMovimiento := nombreCompleto(id)
	if nombreMovimiento == "" {
		return Resultado{Nivel: NivelF, Razon: "sin señales de identidad"}
	}

	// Tier C: exact normalized full name, order-insensitive
	if candidatos, ok := m.porNombre[claveNombre(nombreMovimiento)]; ok {
		if len(candidatos) == 1 {
			return seleccion(candidatos[0], NivelC, confianzaC, "nombre completo exacto")
		}
		// Several members share the exact name: never guess.
		return ambiguo(candidatos, "nombre exacto compartido")
	}

	// Tier D: fuzzy name against the whole registry
	return m.matchDifuso(nombreMovimiento)
}

type puntaje struct {
	socio *socio.Socio
	score float64
}

// matchDifuso looks for a single best fuzzy-name candidate. Confidence is
// 50-70, proportional to token overlap; a tie at the top downgrades to
// tier E rather than guessing.
func (m *Matcher) matchDifuso(nombreMovimiento string) Resultado {
	tokensMovimiento := strings.Fields(normalizer.Normalizar(nombreMovimiento))
	if len(tokensMovimiento) == 0 {
		return Resultado{Nivel: NivelF, Razon: "sin señales de identidad"}
	}

	var puntajes []puntaje
	for _, s := range m.socios {
		tokensSocio := strings.Fields(normalizer.Normalizar(s.Apellido + " " + s.Nombre))
		score := solapamiento(tokensMovimiento, tokensSocio)
		if score > 0 {
			puntajes = append(puntajes, puntaje{socio: s, score: score})
		}
	}

	if len(puntajes) == 0 {
		return Resultado{Nivel: NivelF, Razon: "ningún socio coincide"}
	}

	sort.SliceStable(puntajes, func(i, j int) bool { return puntajes[i].score > puntajes[j].score })

	mejor := puntajes[0]
	if len(puntajes) > 1 && puntajes[1].score == mejor.score {
		var empatados []*socio.Socio
		for _, p := range puntajes {
			if p.score == mejor.score {
				empatados = append(empatados, p.socio)
			}
		}
		return ambiguo(empatados, "empate en coincidencia difusa")
	}

	confianza := 50 + int(mejor.score*20)
	razon := fmt.Sprintf("coincidencia difusa de nombre (%.0f%% de tokens)", mejor.score*100)
	return seleccion(mejor.socio, NivelD, confianza, razon)
}

// solapamiento is the token-overlap ratio between the movement's name and a
// member's full name: matched tokens over the larger token count. Tokens
// match exactly, by prefix, or within levenshtein distance 1 for longer
// words (tolerates bank-side truncation and typos). A score below 0.5
// counts as no match.
func solapamiento(tokensMovimiento, tokensSocio []string) float64 {
	usados := make([]bool, len(tokensSocio))
	coincidencias := 0
	for _, tm := range tokensMovimiento {
		for i, ts := range tokensSocio {
			if usados[i] {
				continue
			}
			if tokenSimilar(tm, ts) {
				usados[i] = true
				coincidencias++
				break
			}
		}
	}

	mayor := len(tokensMovimiento)
	if len(tokensSocio) > mayor {
		mayor = len(tokensSocio)
	}
	if mayor == 0 || coincidencias == 0 {
		return 0
	}

	score := float64(coincidencias) / float64(mayor)
	if score < 0.5 {
		return 0
	}
	return score
}

func tokenSimilar(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) >= 3 && len(b) >= 3 && (strings.HasPrefix(a, b) || strings.HasPrefix(b, a)) {
		return true
	}
	if len(a) >= 5 && len(b) >= 5 {
		distancia := levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
		return distancia <= 1
	}
	return false
}

func seleccion(s *socio.Socio, nivel string, confianza int, razon string) Resultado {
	id := s.ID
	return Resultado{
		SocioID:   &id,
		Nivel:     nivel,
		Confianza: confianza,
		Razon:     razon,
	}
}

func ambiguo(candidatos []*socio.Socio, motivo string) Resultado {
	ids := make([]uuid.UUID, len(candidatos))
	numeros := make([]string, len(candidatos))
	for i, s := range candidatos {
		ids[i] = s.ID
		numeros[i] = fmt.Sprintf("%d", s.NumeroSocio)
	}
	return Resultado{
		Nivel:      NivelE,
		Confianza:  confianzaE,
		Razon:      fmt.Sprintf("%s: socios %s", motivo, strings.Join(numeros, ", ")),
		Candidatos: ids,
	}
}

func nombreCompleto(id normalizer.Identidad) string {
	var partes []string
	if id.Nombre != nil {
		partes = append(partes, *id.Nombre)
	}
	if id.Apellido != nil {
		partes = append(partes, *id.Apellido)
	}
	return strings.Join(partes, " ")
}

// claveNombre builds an order-insensitive key from a full name: banks
// export "JUAN PEREZ" and "PEREZ JUAN" interchangeably.
func claveNombre(nombre string) string {
	tokens := strings.Fields(normalizer.Normalizar(nombre))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func soloDigitos(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
