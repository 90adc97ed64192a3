package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// MaxTurnScore is the sanitization ceiling. Real Qwirkle turns rarely
// clear ~12 outside pathological multi-line plays; 100 is a defensive
// bound, not a rules-accurate one.
const MaxTurnScore = 100

// SanitizeScore clamps a raw model score to [0, MaxTurnScore] and
// rounds to the nearest integer. Every score field crossing this
// package goes through here before the turn engine may see it.
func SanitizeScore(raw float64) int {
	score := int(math.Round(raw))
	if score < 0 {
		return 0
	}
	if score > MaxTurnScore {
		return MaxTurnScore
	}
	return score
}

// Client calls the hosted model endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	log     *logrus.Entry
}

// NewClient builds a client for the given endpoint. The contract is
// opaque JSON over POST; no vendor SDK is assumed.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     logrus.WithField("component", "oracle"),
	}
}

// wire types; raw scores stay float64 until sanitized.

type scoreRequest struct {
	Model        string `json:"model"`
	PhotoDataURI string `json:"photoDataUri"`
}

type scoreResponse struct {
	Score   float64 `json:"score"`
	Details string  `json:"details"`
}

type suggestRequest struct {
	Model                   string `json:"model"`
	BoardPhotoDataURI       string `json:"boardPhotoDataUri"`
	PlayerTilesPhotoDataURI string `json:"playerTilesPhotoDataUri"`
}

type suggestResponse struct {
	BoardLines  []BoardLine `json:"boardLines"`
	PlayerTiles []Tile      `json:"playerTiles"`
	Suggestions []struct {
		TilesToPlay     []Tile  `json:"tilesToPlay"`
		TilesToPlayText string  `json:"tilesToPlayText"`
		Placement       string  `json:"placement"`
		Reasoning       string  `json:"reasoning"`
		Score           float64 `json:"score"`
	} `json:"suggestions"`
}

// CalculateScore asks the model to score the most recent turn visible
// in the board photo.
func (c *Client) CalculateScore(ctx context.Context, photoDataURI string) (*ScoreResult, error) {
	var resp scoreResponse
	err := c.post(ctx, "/v1/qwirkle/score", scoreRequest{Model: c.model, PhotoDataURI: photoDataURI}, &resp)
	if err != nil {
		return nil, &Error{Op: "calculate score", Err: err}
	}
	return &ScoreResult{
		Score:   SanitizeScore(resp.Score),
		Details: resp.Details,
	}, nil
}

// SuggestMoves asks the model for its best moves given the board and
// the player's rack.
func (c *Client) SuggestMoves(ctx context.Context, boardPhotoDataURI, playerTilesPhotoDataURI string) (*MoveSuggestions, error) {
	var resp suggestResponse
	err := c.post(ctx, "/v1/qwirkle/suggest", suggestRequest{
		Model:                   c.model,
		BoardPhotoDataURI:       boardPhotoDataURI,
		PlayerTilesPhotoDataURI: playerTilesPhotoDataURI,
	}, &resp)
	if err != nil {
		return nil, &Error{Op: "suggest moves", Err: err}
	}

	out := &MoveSuggestions{
		BoardLines:  resp.BoardLines,
		PlayerTiles: resp.PlayerTiles,
	}
	for _, s := range resp.Suggestions {
		out.Suggestions = append(out.Suggestions, Suggestion{
			TilesToPlay:     s.TilesToPlay,
			TilesToPlayText: s.TilesToPlayText,
			Placement:       s.Placement,
			Reasoning:       s.Reasoning,
			Score:           SanitizeScore(s.Score),
		})
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("model endpoint returned %d: %s", resp.StatusCode, snippet)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("unusable model response: %w", err)
	}

	c.log.WithFields(logrus.Fields{"path": path, "elapsed": time.Since(start)}).Debug("oracle call completed")
	return nil
}
