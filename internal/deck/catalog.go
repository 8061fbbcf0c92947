package deck

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

// Pack files: one card per line, blank lines ignored.
const (
	PromptsFile   = "prompts.txt"
	ResponsesFile = "answers.txt"
)

//go:embed packs
var embeddedPacks embed.FS

// ErrDuplicateCard is returned when two catalog cards share an id.
var ErrDuplicateCard = errors.New("duplicate card id")

// Catalog is the immutable universe of prompt and response cards. It is safe
// for concurrent use once built.
type Catalog struct {
	prompts   []Card
	responses []Card
	byID      map[string]Card
	packs     []string
}

// NewCatalog validates cards and builds a catalog from them. Prompts must
// contain at least one blank marker.
func NewCatalog(cards ...Card) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Card, len(cards))}
	packs := make(map[string]bool)

	for _, card := range cards {
		if card.ID == "" {
			return nil, fmt.Errorf("card %q has no id", card.Text)
		}
		if strings.TrimSpace(card.Text) == "" {
			return nil, fmt.Errorf("card %s has no text", card.ID)
		}
		if _, exists := c.byID[card.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCard, card.ID)
		}

		switch card.Kind {
		case Prompt:
			if !strings.Contains(card.Text, Blank) {
				return nil, fmt.Errorf("prompt %s needs at least one %s blank", card.ID, Blank)
			}
			c.prompts = append(c.prompts, card)
		case Response:
			c.responses = append(c.responses, card)
		default:
			return nil, fmt.Errorf("card %s has invalid kind %d", card.ID, int(card.Kind))
		}

		c.byID[card.ID] = card
		if card.Pack != "" {
			packs[card.Pack] = true
		}
	}

	for p := range packs {
		c.packs = append(c.packs, p)
	}
	sort.Strings(c.packs)

	return c, nil
}

// Default returns the catalog built from the packs compiled into the binary.
func Default() (*Catalog, error) {
	return LoadFS(embeddedPacks, "packs")
}

// LoadDir loads every pack directory under dir.
func LoadDir(dir string) (*Catalog, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("decks directory: %w", err)
	}
	return LoadFS(os.DirFS(dir), ".")
}

// LoadFS loads every pack directory under root in fsys. Each pack directory
// may hold a prompts file, a responses file, or both.
func LoadFS(fsys fs.FS, root string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read packs: %w", err)
	}

	var cards []Card
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pack := entry.Name()
		dir := path.Join(root, pack)

		prompts, err := readPackFile(fsys, path.Join(dir, PromptsFile), pack, Prompt)
		if err != nil {
			return nil, err
		}
		responses, err := readPackFile(fsys, path.Join(dir, ResponsesFile), pack, Response)
		if err != nil {
			return nil, err
		}
		cards = append(cards, prompts...)
		cards = append(cards, responses...)
	}

	return NewCatalog(cards...)
}

func readPackFile(fsys fs.FS, name, pack string, kind Kind) ([]Card, error) {
	f, err := fsys.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	prefix := "r"
	if kind == Prompt {
		prefix = "p"
	}

	var cards []Card
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		id := fmt.Sprintf("%s/%s%03d", pack, prefix, len(cards)+1)
		cards = append(cards, NewCard(id, kind, text, pack))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return cards, nil
}

// Cards returns a copy of every card of the given kind, in catalog order.
func (c *Catalog) Cards(kind Kind) []Card {
	var src []Card
	switch kind {
	case Prompt:
		src = c.prompts
	case Response:
		src = c.responses
	}
	out := make([]Card, len(src))
	copy(out, src)
	return out
}

// Len returns how many cards of kind the catalog holds.
func (c *Catalog) Len(kind Kind) int {
	switch kind {
	case Prompt:
		return len(c.prompts)
	case Response:
		return len(c.responses)
	default:
		return 0
	}
}

// Lookup finds a card by id.
func (c *Catalog) Lookup(id string) (Card, bool) {
	card, ok := c.byID[id]
	return card, ok
}

// Packs lists the pack names present in the catalog.
func (c *Catalog) Packs() []string {
	return append([]string(nil), c.packs...)
}

// MaxPick returns the largest number of blanks on any prompt, or 1 for a
// catalog without prompts.
func (c *Catalog) MaxPick() int {
	most := 1
	for _, p := range c.prompts {
		if n := p.Pick(); n > most {
			most = n
		}
	}
	return most
}
