// Command authcli is an operator utility for the credential core: RSA
// keypair generation, password hash creation, passcode generation, and
// symmetric encrypt/decrypt of short text.
package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/confideapp/confide/internal/cryptox"
	"github.com/confideapp/confide/internal/filex"
	"github.com/confideapp/confide/internal/server/keys"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: authcli <keygen|hash|otp|encrypt|decrypt> [flags]")
	}

	switch args[0] {
	case "keygen":
		return keygen(args[1:], out)
	case "hash":
		return hashPassword(args[1:], out)
	case "otp":
		return otp(args[1:], out)
	case "encrypt":
		return encrypt(args[1:], in, out)
	case "decrypt":
		return decrypt(args[1:], in, out)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// keygen writes a fresh RSA pair as private.pem / public.pem.
func keygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	dir := fs.String("dir", "./keys", "output directory")
	bits := fs.Int("bits", 2048, "RSA key size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	target, err := filex.EnsureDir(*dir)
	if err != nil {
		return err
	}

	key, err := rsa.GenerateKey(rand.Reader, *bits)
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return fmt.Errorf("encoding public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	privPath := filepath.Join(target, "private.pem")
	pubPath := filepath.Join(target, "public.pem")
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		return err
	}

	fmt.Fprintf(out, "wrote %s and %s\n", privPath, pubPath)
	return nil
}

// hashPassword prompts for a password without echo and prints its bcrypt hash.
func hashPassword(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	cost := fs.Int("cost", 10, "bcrypt cost factor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprint(out, "Enter password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return err
	}
	defer cryptox.Wipe(pw)

	hasher := cryptox.NewHasher(*cost, 1)
	hash, err := hasher.Hash(context.Background(), string(pw))
	if err != nil {
		return err
	}

	fmt.Fprintln(out, hash)
	return nil
}

func otp(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("otp", flag.ContinueOnError)
	length := fs.Int("n", cryptox.DefaultOTPLength, "number of digits")
	if err := fs.Parse(args); err != nil {
		return err
	}

	code, err := cryptox.GenerateOTP(*length)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, code)
	return nil
}

func encrypt(args []string, in io.Reader, out io.Writer) error {
	passphrase, text, err := symmetricArgs(args, in)
	if err != nil {
		return err
	}

	envelope, err := cryptox.EncryptText(text, keys.DeriveSymmetric(passphrase))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, envelope)
	return nil
}

func decrypt(args []string, in io.Reader, out io.Writer) error {
	passphrase, envelope, err := symmetricArgs(args, in)
	if err != nil {
		return err
	}

	plaintext, err := cryptox.DecryptText(envelope, keys.DeriveSymmetric(passphrase))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, plaintext)
	return nil
}

// symmetricArgs parses the shared -key flag and reads one line of input.
func symmetricArgs(args []string, in io.Reader) (passphrase, line string, err error) {
	fs := flag.NewFlagSet("symmetric", flag.ContinueOnError)
	key := fs.String("key", "", "symmetric passphrase")
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	if *key == "" {
		return "", "", fmt.Errorf("-key is required")
	}

	text, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", "", err
	}
	return *key, strings.TrimRight(text, "\r\n"), nil
}
