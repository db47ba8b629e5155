package aead_test

import (
	"fmt"
	"testing"

	"github.com/cripta/envelopesvc/internal/aead"
)

func benchmarkSeal(b *testing.B, size int) {
	key, err := aead.GenerateKey()
	if err != nil {
		b.Fatal(err)
	}
	plaintext := make([]byte, size)

	b.SetBytes(int64(size))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := aead.Seal(key, plaintext); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkOpen(b *testing.B, size int) {
	key, err := aead.GenerateKey()
	if err != nil {
		b.Fatal(err)
	}
	blob, err := aead.Seal(key, make([]byte, size))
	if err != nil {
		b.Fatal(err)
	}

	b.SetBytes(int64(size))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := aead.Open(key, blob); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSeal(b *testing.B) {
	for _, size := range []int{64, 1024, 64 * 1024} {
		b.Run(fmt.Sprintf("%dB", size), func(b *testing.B) {
			benchmarkSeal(b, size)
		})
	}
}

func BenchmarkOpen(b *testing.B) {
	for _, size := range []int{64, 1024, 64 * 1024} {
		b.Run(fmt.Sprintf("%dB", size), func(b *testing.B) {
			benchmarkOpen(b, size)
		})
	}
}
