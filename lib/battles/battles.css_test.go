package battles

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformImage(c color.Color, width int, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

type fakeCatalog struct {
	reference *ReferenceImage
}

func (c *fakeCatalog) RandomImage(ctx context.Context) (*ReferenceImage, error) {
	if c.reference == nil {
		return nil, errors.New("empty catalog")
	}
	return c.reference, nil
}

// fakeRenderer maps each submitted markup string to a fixed image.
type fakeRenderer struct {
	renders map[string]image.Image
}

func (r *fakeRenderer) Render(ctx context.Context, markup string) (image.Image, error) {
	img, ok := r.renders[markup]
	if !ok {
		return nil, errors.New("render failed")
	}
	return img, nil
}

func serveImage(t *testing.T, img image.Image) *httptest.Server {
	t.Helper()

	var buffer bytes.Buffer
	require.NoError(t, png.Encode(&buffer, img))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(buffer.Bytes())
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSimilarity(t *testing.T) {
	white := uniformImage(color.White, 8, 8)
	black := uniformImage(color.Black, 8, 8)
	gray := uniformImage(color.Gray{Y: 200}, 8, 8)

	assert.InDelta(t, 100.0, Similarity(white, white), 0.01)
	assert.InDelta(t, 0.0, Similarity(white, black), 0.01)

	// A light gray against white lands strictly between the extremes.
	similarity := Similarity(gray, white)
	assert.Greater(t, similarity, 0.0)
	assert.Less(t, similarity, 100.0)

	// Size mismatch is resolved by sampling, identical content still matches.
	large_white := uniformImage(color.White, 16, 16)
	assert.InDelta(t, 100.0, Similarity(white, large_white), 0.01)
}

func TestTimeEfficiency(t *testing.T) {
	assert.InDelta(t, 100.0, timeEfficiency(0), 0.01)
	assert.InDelta(t, 0.0, timeEfficiency(maxCssRoundSeconds), 0.01)
	assert.InDelta(t, 0.0, timeEfficiency(maxCssRoundSeconds*2), 0.01)

	half := timeEfficiency(maxCssRoundSeconds / 2)
	assert.InDelta(t, 50.0, half, 0.01)
}

func TestCssComputeResult(t *testing.T) {
	reference_img := uniformImage(color.White, 8, 8)
	server := serveImage(t, reference_img)

	catalog := &fakeCatalog{reference: &ReferenceImage{URL: server.URL, Colors: []string{"#ffffff"}}}
	renderer := &fakeRenderer{renders: map[string]image.Image{
		"good markup": uniformImage(color.White, 8, 8),
		"bad markup":  uniformImage(color.Black, 8, 8),
	}}
	engine := NewCssEngine(catalog, renderer, server.Client())

	battle := &Battle{
		ID:         "battle-css",
		Category:   CategoryCss,
		Challenger: "alice",
		Opponent:   "bob",
		Duration:   30,
	}

	_, err := engine.GenerateConfig(context.Background(), battle)
	require.NoError(t, err)

	both, err := engine.RecordSubmission(battle.ID, "alice", "good markup")
	require.NoError(t, err)
	assert.False(t, both)
	both, err = engine.RecordSubmission(battle.ID, "bob", "bad markup")
	require.NoError(t, err)
	assert.True(t, both)

	result, err := engine.ComputeResult(context.Background(), battle)
	require.NoError(t, err)

	assert.Equal(t, "alice", result.WinnerUsername)
	assert.Equal(t, "bob", result.LoserUsername)
	assert.Contains(t, result.WinnerScore, "Points")
	assert.Contains(t, result.LoserScore, "Points")
}

func TestCssUnrenderableSubmissionLoses(t *testing.T) {
	reference_img := uniformImage(color.White, 8, 8)
	server := serveImage(t, reference_img)

	catalog := &fakeCatalog{reference: &ReferenceImage{URL: server.URL}}
	renderer := &fakeRenderer{renders: map[string]image.Image{
		"good markup": uniformImage(color.Black, 8, 8),
	}}
	engine := NewCssEngine(catalog, renderer, server.Client())

	battle := &Battle{
		ID:         "battle-css-2",
		Category:   CategoryCss,
		Challenger: "alice",
		Opponent:   "bob",
		Duration:   30,
	}

	_, err := engine.GenerateConfig(context.Background(), battle)
	require.NoError(t, err)

	// Bob's markup cannot be rendered; alice wins with a zero-similarity
	// render because she is the only scored participant.
	_, err = engine.RecordSubmission(battle.ID, "alice", "good markup")
	require.NoError(t, err)
	_, err = engine.RecordSubmission(battle.ID, "bob", "broken markup")
	require.NoError(t, err)

	result, err := engine.ComputeResult(context.Background(), battle)
	require.NoError(t, err)
	assert.Equal(t, "alice", result.WinnerUsername)
}

func TestCssGenerateConfigUsesCatalog(t *testing.T) {
	catalog := &fakeCatalog{reference: &ReferenceImage{URL: "http://images/ref.png", Colors: []string{"#102030", "#ffffff"}}}
	engine := NewCssEngine(catalog, &fakeRenderer{}, nil)

	battle := &Battle{ID: "battle-css-3", Category: CategoryCss, Duration: 30}
	config, err := engine.GenerateConfig(context.Background(), battle)
	require.NoError(t, err)

	css_config, ok := config.(CssConfig)
	require.True(t, ok)
	assert.Equal(t, "http://images/ref.png", css_config.ImageURL)
	assert.Equal(t, []string{"#102030", "#ffffff"}, css_config.Colors)
	assert.Equal(t, 30, css_config.Duration)
}

func TestCssGenerateConfigDerivesMissingPalette(t *testing.T) {
	server := serveImage(t, uniformImage(color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}, 4, 4))

	catalog := &fakeCatalog{reference: &ReferenceImage{URL: server.URL}}
	engine := NewCssEngine(catalog, &fakeRenderer{}, nil)

	battle := &Battle{ID: "battle-css-4", Category: CategoryCss, Duration: 30}
	config, err := engine.GenerateConfig(context.Background(), battle)
	require.NoError(t, err)

	css_config, ok := config.(CssConfig)
	require.True(t, ok)
	assert.Equal(t, []string{"#102030"}, css_config.Colors)
}

func TestDominantHexColors(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 1))
	img.Set(0, 0, color.RGBA{R: 0xff, A: 0xff})
	img.Set(1, 0, color.RGBA{R: 0xff, A: 0xff})
	img.Set(2, 0, color.RGBA{R: 0xff, A: 0xff})
	img.Set(3, 0, color.RGBA{B: 0xff, A: 0xff})

	colors := DominantHexColors(img, 5)
	require.Len(t, colors, 2)
	assert.Equal(t, "#ff0000", colors[0])
	assert.Equal(t, "#0000ff", colors[1])

	capped := DominantHexColors(img, 1)
	assert.Equal(t, []string{"#ff0000"}, capped)
}
