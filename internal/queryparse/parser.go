package queryparse

import (
	"github.com/latintext/corpusquery/internal/corpuserr"
	"github.com/latintext/corpusquery/internal/types"
)

const defaultProximityDist = 5

var categoryByLabel = map[string]types.Category{
	"case":   types.CategoryCase,
	"number": types.CategoryNumber,
	"gender": types.CategoryGender,
	"person": types.CategoryPerson,
	"mood":   types.CategoryMood,
	"voice":  types.CategoryVoice,
	"tense":  types.CategoryTense,
	"degree": types.CategoryDegree,
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) parseErr(pos int, reason string) error {
	return corpuserr.NewParseError(pos, reason)
}

// Parse parses a full query string per spec §4.5's grammar.
func Parse(q string) (*Query, error) {
	toks, lexErr := lex(q)
	if lexErr != nil {
		le := lexErr.(*lexError)
		return nil, corpuserr.NewParseError(le.pos, le.reason)
	}
	p := &parser{toks: toks}

	query := &Query{}

	if p.cur().kind == tokLBracket {
		authors, err := p.parseAuthors()
		if err != nil {
			return nil, err
		}
		query.Authors = authors
	}

	if p.cur().kind == tokEOF {
		return query, nil
	}

	first, err := p.parseConstraint()
	if err != nil {
		return nil, err
	}
	query.Terms = append(query.Terms, QueryTerm{Constraint: first, Relation: Relation{Kind: First}})

	for p.cur().kind != tokEOF {
		rel, err := p.parseRelation()
		if err != nil {
			return nil, err
		}
		c, err := p.parseConstraint()
		if err != nil {
			return nil, err
		}
		query.Terms = append(query.Terms, QueryTerm{Constraint: c, Relation: rel})
	}

	return query, nil
}

func (p *parser) parseAuthors() ([]string, error) {
	open := p.advance() // consume '['
	var authors []string
	for {
		if p.cur().kind != tokIdent {
			return nil, p.parseErr(p.cur().pos, "expected author name inside author list")
		}
		authors = append(authors, p.advance().text)
		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	if p.cur().kind != tokRBracket {
		return nil, p.parseErr(open.pos, "unmatched '[' in author list")
	}
	p.advance() // consume ']'
	return authors, nil
}

// parseRelation consumes the relation marker before the next term: a
// plain "nothing" (After, when the next token starts a term directly),
// or a [N] '~' / [N] '~>' proximity marker. No term ever begins with a
// digit or '~', so the next token alone disambiguates.
func (p *parser) parseRelation() (Relation, error) {
	switch p.cur().kind {
	case tokNumber, tokTilde, tokTildeGt:
		dist := defaultProximityDist
		if p.cur().kind == tokNumber {
			n, err := parseUint(p.cur().text)
			if err != nil {
				return Relation{}, p.parseErr(p.cur().pos, "invalid proximity distance")
			}
			dist = n
			p.advance()
		}
		switch p.cur().kind {
		case tokTilde:
			p.advance()
			return Relation{Kind: Proximity, Dist: dist, Directed: false}, nil
		case tokTildeGt:
			p.advance()
			return Relation{Kind: Proximity, Dist: dist, Directed: true}, nil
		default:
			return Relation{}, p.parseErr(p.cur().pos, "expected '~' or '~>' after proximity distance")
		}
	default:
		return Relation{Kind: After}, nil
	}
}

var errNotDigit = &lexError{reason: "not a digit"}

func parseUint(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errNotDigit
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

// parseConstraint parses one term's constraint, rejecting mixed and/or
// at the same parenthetical level (spec §4.5).
func (p *parser) parseConstraint() (Constraint, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	op := "" // "" | "and" | "or"
	children := []Constraint{first}
	for p.cur().kind == tokIdent && (p.cur().text == "and" || p.cur().text == "or") {
		word := p.cur().text
		if op == "" {
			op = word
		} else if op != word {
			return nil, p.parseErr(p.cur().pos, "mixed 'and'/'or' at the same level")
		}
		p.advance()
		next, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}

	if len(children) == 1 {
		return children[0], nil
	}
	if op == "and" {
		return And{Children: children}, nil
	}
	return Or{Children: children}, nil
}

func (p *parser) parseUnary() (Constraint, error) {
	switch p.cur().kind {
	case tokBang:
		p.advance()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Child: child}, nil

	case tokLParen:
		open := p.advance()
		c, err := p.parseConstraint()
		if err != nil {
			return nil, err
		}
		if p.cur().kind != tokRParen {
			return nil, p.parseErr(open.pos, "unmatched '('")
		}
		p.advance()
		return c, nil

	case tokAt:
		return p.parseAtAtom()

	case tokIdent:
		ident := p.cur()
		if ident.text == "and" || ident.text == "or" {
			return nil, p.parseErr(ident.pos, "'and'/'or' with no left operand")
		}
		p.advance()
		return Atom{Category: types.CategoryWord, Value: ident.text}, nil

	default:
		return nil, p.parseErr(p.cur().pos, "expected an atom, '!', or '('")
	}
}

func (p *parser) parseAtAtom() (Constraint, error) {
	at := p.advance() // consume '@'
	if p.cur().kind != tokIdent {
		return nil, p.parseErr(at.pos, "expected identifier after '@'")
	}
	label := p.advance()

	if p.cur().kind != tokColon {
		return nil, p.parseErr(label.pos, "expected ':' after atom label")
	}
	p.advance()

	if p.cur().kind != tokIdent {
		return nil, p.parseErr(p.cur().pos, "expected identifier after ':'")
	}
	value := p.advance()

	switch label.text {
	case "lemma", "l":
		return Atom{Category: types.CategoryLemma, Value: value.text}, nil
	case "word", "w":
		return Atom{Category: types.CategoryWord, Value: value.text}, nil
	default:
		cat, ok := categoryByLabel[label.text]
		if !ok {
			return nil, p.parseErr(label.pos, "unknown category label: "+label.text)
		}
		return Atom{Category: cat, Value: value.text}, nil
	}
}
