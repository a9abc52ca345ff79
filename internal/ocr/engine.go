package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Engine turns a processed crop into a single line of text. Implementations
// must tolerate concurrent callers.
type Engine interface {
	Recognize(img image.Image, whitelist string) (string, error)
	Close() error
}

// TesseractEngine recognizes text with a long-lived Tesseract client locked
// to single-line page segmentation. The client is not reentrant, so calls
// serialize on a mutex.
type TesseractEngine struct {
	mu     sync.Mutex
	client *gosseract.Client
	closed bool
}

// NewTesseractEngine initializes a Tesseract client for single-line reads.
func NewTesseractEngine() (*TesseractEngine, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("tesseract language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("tesseract page seg mode: %w", err)
	}

	return &TesseractEngine{client: client}, nil
}

// Recognize extracts one line of text from the image. A non-empty whitelist
// restricts the characters the recognizer may emit; pass "" for no
// restriction. The returned text is trimmed of surrounding whitespace.
func (e *TesseractEngine) Recognize(img image.Image, whitelist string) (string, error) {
	encoded, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return "", fmt.Errorf("tesseract engine is closed")
	}

	if err := e.client.SetWhitelist(whitelist); err != nil {
		return "", fmt.Errorf("tesseract whitelist: %w", err)
	}
	if err := e.client.SetImageFromBytes(encoded); err != nil {
		return "", fmt.Errorf("tesseract set image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract recognize: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Close releases the Tesseract client. The engine is unusable afterwards.
func (e *TesseractEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	return e.client.Close()
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
