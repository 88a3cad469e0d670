// Package idgen generates the identifiers assigned by the store:
// stream ids (UUID v4), chat message ids (ULID) and stream keys.
package idgen

import (
	"fmt"
)

// Generator produces unique string identifiers.
type Generator interface {
	Generate() (string, error)
}

// Stream key formats.
const (
	FormatNanoID = "nanoid"
	FormatCUID2  = "cuid2"
	FormatKSUID  = "ksuid"
)

// KeyConfig configures the stream key generator.
type KeyConfig struct {
	Format   string `mapstructure:"format"`
	Size     int    `mapstructure:"size"`
	Alphabet string `mapstructure:"alphabet"`
}

// NewKeyGenerator returns the stream key generator for cfg.Format.
func NewKeyGenerator(cfg KeyConfig) (Generator, error) {
	switch cfg.Format {
	case FormatNanoID, "":
		size := cfg.Size
		if size == 0 {
			size = DefaultNanoIDSize
		}
		alphabet := cfg.Alphabet
		if alphabet == "" {
			alphabet = DefaultNanoIDAlphabet
		}
		return NewNanoIDGenerator(size, alphabet)
	case FormatCUID2:
		length := cfg.Size
		if length == 0 {
			length = DefaultCUID2Length
		}
		return NewCUID2Generator(length)
	case FormatKSUID:
		return NewKSUIDGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported stream key format: %s", cfg.Format)
	}
}
