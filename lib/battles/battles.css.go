package battles

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	_ "image/jpeg"
	_ "image/png"
)

// ReferenceImage is one entry of the CSS target catalog: the hosted image and
// its precomputed dominant color palette.
type ReferenceImage struct {
	URL    string   `json:"url"`
	Colors []string `json:"colors"`
}

// ImageCatalog supplies a random reference image for a CSS round.
type ImageCatalog interface {
	RandomImage(ctx context.Context) (*ReferenceImage, error)
}

// Renderer rasterizes submitted markup out-of-process.
type Renderer interface {
	Render(ctx context.Context, markup string) (image.Image, error)
}

const (
	similarityWeight = 0.9
	timeWeight       = 0.1

	// Longest supported round used by the time-efficiency term, in seconds.
	maxCssRoundSeconds = 30 * 60

	maxPaletteColors = 4
)

// CssEngine scores CSS replication battles: each submission is rendered to a
// raster image and compared against the reference with a grayscale
// pixel-difference similarity, blended with a time-efficiency term.
type CssEngine struct {
	catalog  ImageCatalog
	renderer Renderer
	client   *http.Client

	mu          sync.Mutex
	configs     map[string]CssConfig
	submissions *submissionRegistry
}

func NewCssEngine(catalog ImageCatalog, renderer Renderer, client *http.Client) *CssEngine {
	if client == nil {
		client = http.DefaultClient
	}
	return &CssEngine{
		catalog:     catalog,
		renderer:    renderer,
		client:      client,
		configs:     make(map[string]CssConfig),
		submissions: newSubmissionRegistry(),
	}
}

func (e *CssEngine) Category() Category { return CategoryCss }

func (e *CssEngine) GenerateConfig(ctx context.Context, battle *Battle) (Config, error) {
	reference, err := e.catalog.RandomImage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to pick reference image: %w", err)
	}

	colors := reference.Colors
	if len(colors) == 0 {
		// Catalog entries ingested before palette extraction carry none,
		// derive it from the reference image itself.
		img, err := e.fetchReference(ctx, reference.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to derive palette for %s: %w", reference.URL, err)
		}
		colors = DominantHexColors(img, maxPaletteColors)
	}

	config := CssConfig{
		ImageURL: reference.URL,
		Duration: battle.Duration,
		Colors:   colors,
	}

	e.mu.Lock()
	e.configs[battle.ID] = config
	e.mu.Unlock()
	return config, nil
}

func (e *CssEngine) RecordSubmission(battle_id string, username string, payload string) (bool, error) {
	return e.submissions.Ensure(battle_id).put(username, payload)
}

func (e *CssEngine) ComputeResult(ctx context.Context, battle *Battle) (*Result, error) {
	e.mu.Lock()
	config, ok := e.configs[battle.ID]
	e.mu.Unlock()
	if !ok {
		// The config was persisted on the battle row at start, recover it
		// from there.
		recovered, err := UnmarshalConfig(battle.ConfigJSON)
		if err != nil {
			return nil, fmt.Errorf("no css config for battle %s: %w", battle.ID, err)
		}
		css_config, ok := recovered.(CssConfig)
		if !ok {
			return nil, fmt.Errorf("battle %s carries a non-css config", battle.ID)
		}
		config = css_config
	}

	reference, err := e.fetchReference(ctx, config.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reference image: %w", err)
	}

	challenger_score, challenger_scored := e.scoreParticipant(ctx, battle, battle.Challenger, reference, config)
	opponent_score, opponent_scored := e.scoreParticipant(ctx, battle, battle.Opponent, reference, config)

	challenger_wins := challengerWins(challenger_score, opponent_score, challenger_scored, opponent_scored)

	result := &Result{}
	if challenger_wins {
		result.WinnerUsername = battle.Challenger
		result.LoserUsername = battle.Opponent
		result.WinnerScore = fmt.Sprintf("%.2f Points", challenger_score)
		result.LoserScore = fmt.Sprintf("%.2f Points", opponent_score)
	} else {
		result.WinnerUsername = battle.Opponent
		result.LoserUsername = battle.Challenger
		result.WinnerScore = fmt.Sprintf("%.2f Points", opponent_score)
		result.LoserScore = fmt.Sprintf("%.2f Points", challenger_score)
	}
	return result, nil
}

func (e *CssEngine) Discard(battle_id string) {
	e.mu.Lock()
	delete(e.configs, battle_id)
	e.mu.Unlock()
	e.submissions.Discard(battle_id)
}

// scoreParticipant renders one submission and blends similarity with time
// efficiency. A missing or unrenderable submission scores zero and is flagged
// unscored, which settles as an automatic loss.
func (e *CssEngine) scoreParticipant(ctx context.Context, battle *Battle, username string, reference image.Image, config CssConfig) (float64, bool) {
	set, ok := e.submissions.Get(battle.ID)
	if !ok {
		return 0, false
	}
	markup, ok := set.get(username)
	if !ok {
		return 0, false
	}

	rendered, err := e.renderer.Render(ctx, markup)
	if err != nil {
		slog.Warn("Battles : css render failed", "battle_id", battle.ID, "username", username, "error", err)
		return 0, false
	}

	similarity := Similarity(rendered, reference)
	score := similarityWeight*similarity + timeWeight*timeEfficiency(config.Duration)
	return score, true
}

func (e *CssEngine) fetchReference(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image from %s: %w", url, err)
	}
	return img, nil
}

// Similarity compares two images in grayscale and returns 100 minus the mean
// absolute pixel difference, floored at zero. Identical images score 100. The
// second image is sampled at the first image's dimensions when sizes differ.
func Similarity(a image.Image, b image.Image) float64 {
	bounds := a.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return 0
	}

	b_bounds := b.Bounds()
	var total float64
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			bx := b_bounds.Min.X + x*b_bounds.Dx()/width
			by := b_bounds.Min.Y + y*b_bounds.Dy()/height

			ga := grayValue(a.At(bounds.Min.X+x, bounds.Min.Y+y))
			gb := grayValue(b.At(bx, by))

			diff := ga - gb
			if diff < 0 {
				diff = -diff
			}
			total += diff
		}
	}

	mean := total / float64(width*height)
	similarity := 100 - mean
	if similarity < 0 {
		return 0
	}
	return similarity
}

// grayValue maps a color to a 0-255 luminance using the standard BT.601
// weights.
func grayValue(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257.0
}

// timeEfficiency rewards shorter rounds, scaled to [0,100] over the longest
// supported round.
func timeEfficiency(duration_seconds int) float64 {
	efficiency := float64(maxCssRoundSeconds-duration_seconds) / (float64(maxCssRoundSeconds) / 100.0)
	if efficiency < 0 {
		return 0
	}
	if efficiency > 100 {
		return 100
	}
	return efficiency
}

// DominantHexColors samples every pixel of an image and returns the most
// frequent colors as hex strings, most frequent first, capped at max_colors.
func DominantHexColors(img image.Image, max_colors int) []string {
	bounds := img.Bounds()
	frequency := make(map[uint32]int)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			key := (r>>8)<<16 | (g>>8)<<8 | b>>8
			frequency[key]++
		}
	}

	keys := make([]uint32, 0, len(frequency))
	for key := range frequency {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if frequency[keys[i]] != frequency[keys[j]] {
			return frequency[keys[i]] > frequency[keys[j]]
		}
		return keys[i] < keys[j]
	})

	if len(keys) > max_colors {
		keys = keys[:max_colors]
	}

	colors := make([]string, 0, len(keys))
	for _, key := range keys {
		colors = append(colors, fmt.Sprintf("#%06x", key))
	}
	return colors
}
