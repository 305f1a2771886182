// Command s3dec decrypts an object previously uploaded by `s3m stream
// --encrypt`, reading the on-disk
// [nonce_len:1][nonce:nonce_len]([frame_len:4 BE][ciphertext:frame_len])*
// framing via stream.DecryptReader, grounded on
// original_source/src/cli/decrypt.rs.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/s3m-go/s3m/stream"
)

func main() {
	encKey := flag.String("enc-key", "", "32-character encryption key")
	output := flag.String("out", "", "output path (default: input path with .decrypted appended)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: s3dec --enc-key KEY [--out PATH] ENCRYPTED_FILE")
		os.Exit(2)
	}
	if err := run(flag.Arg(0), *encKey, *output); err != nil {
		fmt.Fprintln(os.Stderr, "s3dec:", err)
		os.Exit(1)
	}
}

func run(inPath, encKey, outPath string) error {
	if len(encKey) != 32 {
		return fmt.Errorf("encryption key must be 32 characters long")
	}
	var key [32]byte
	copy(key[:], encKey)

	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inPath, err)
	}
	defer in.Close()

	if outPath == "" {
		outPath = inPath + ".decrypted"
	}
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer out.Close()

	r, err := stream.DecryptReader(in, key)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("decrypting %s: %w", inPath, err)
	}
	return nil
}
