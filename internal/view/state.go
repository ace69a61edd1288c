package view

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"coinfolio/internal/models"
)

// FilterCoins keeps coins whose name, symbol or id contains term, ignoring
// case. An empty term keeps everything.
func FilterCoins(coins []models.Coin, term string) []models.Coin {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return coins
	}
	var res []models.Coin
	for _, c := range coins {
		if strings.Contains(strings.ToLower(c.Name), term) ||
			strings.Contains(strings.ToLower(c.Symbol), term) ||
			strings.Contains(strings.ToLower(c.ID), term) {
			res = append(res, c)
		}
	}
	return res
}

// CoinBrowser is the searchable, paged market table.
type CoinBrowser struct {
	all     []models.Coin
	visible []models.Coin
	term    string
	Pager   *Pager
}

func NewCoinBrowser(coins []models.Coin) *CoinBrowser {
	return &CoinBrowser{all: coins, visible: coins, Pager: NewPager(len(coins), CoinsPerPage)}
}

// Search filters the table and returns to the first page.
func (b *CoinBrowser) Search(term string) {
	b.term = term
	b.visible = FilterCoins(b.all, term)
	b.Pager.SetTotal(len(b.visible))
}

func (b *CoinBrowser) Term() string           { return b.term }
func (b *CoinBrowser) Matches() int           { return len(b.visible) }
func (b *CoinBrowser) Current() []models.Coin { return Slice(b.Pager, b.visible) }

type Mode int

const (
	Viewing Mode = iota
	Editing
)

func (m Mode) String() string {
	if m == Editing {
		return "editing"
	}
	return "viewing"
}

// EditState is the view/edit toggle of one asset row.
type EditState struct {
	mode  Mode
	asset models.Asset
	Draft models.AssetInput
}

func NewEditState(a models.Asset) *EditState {
	return &EditState{asset: a}
}

func (e *EditState) Mode() Mode          { return e.mode }
func (e *EditState) Asset() models.Asset { return e.asset }

// Begin starts editing from the asset's current values.
func (e *EditState) Begin() {
	e.mode = Editing
	e.Draft = e.asset.Input()
}

// Save validates the draft and returns it for persisting. The state stays
// in Editing when the draft is invalid.
func (e *EditState) Save() (models.AssetInput, error) {
	if e.mode != Editing {
		return models.AssetInput{}, fmt.Errorf("not editing")
	}
	in := e.Draft.Normalized()
	if err := in.Validate(); err != nil {
		return models.AssetInput{}, err
	}
	e.mode = Viewing
	return in, nil
}

// Commit replaces the shown asset with what the server stored.
func (e *EditState) Commit(a models.Asset) {
	e.asset = a
	e.mode = Viewing
}

// Cancel drops the draft.
func (e *EditState) Cancel() {
	e.mode = Viewing
	e.Draft = models.AssetInput{}
}

type ToastKind int

const (
	Success ToastKind = iota
	Failure
)

func (k ToastKind) String() string {
	if k == Failure {
		return "error"
	}
	return "success"
}

type Toast struct {
	Kind ToastKind
	Text string
	At   time.Time
}

// Notifier queues transient messages until the UI drains them.
type Notifier struct {
	mu    sync.Mutex
	queue []Toast
}

func (n *Notifier) Success(format string, args ...any) { n.push(Success, fmt.Sprintf(format, args...)) }
func (n *Notifier) Error(format string, args ...any)   { n.push(Failure, fmt.Sprintf(format, args...)) }

func (n *Notifier) push(k ToastKind, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queue = append(n.queue, Toast{Kind: k, Text: text, At: time.Now()})
}

// Drain returns the queued toasts oldest first and empties the queue.
func (n *Notifier) Drain() []Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	q := n.queue
	n.queue = nil
	return q
}
