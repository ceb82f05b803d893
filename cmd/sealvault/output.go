package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bitfsorg/sealvault-go/seal"
	"github.com/bitfsorg/sealvault-go/vault"
)

func writeJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writePlain(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

type uploadOutput struct {
	BlobID         string          `json:"blob_id"`
	Identifier     string          `json:"identifier"`
	Encryption     seal.Status     `json:"encryption,omitempty"`
	Descriptor     json.RawMessage `json:"descriptor,omitempty"`
	RegisterDigest string          `json:"register_digest"`
	CertifyDigest  string          `json:"certify_digest"`
}

func printUpload(res *vault.Result, jsonOutput bool) error {
	out := uploadOutput{
		BlobID:         res.BlobID,
		Identifier:     res.Identifier,
		RegisterDigest: res.RegisterDigest,
		CertifyDigest:  res.CertifyDigest,
	}
	if res.Descriptor != nil {
		out.Encryption = res.Encryption
		desc, err := seal.MarshalDescriptor(res.Descriptor)
		if err != nil {
			return err
		}
		out.Descriptor = desc
	}
	if jsonOutput {
		return writeJSON(out)
	}

	if err := writePlain("%s\n", res.Message); err != nil {
		return err
	}
	if res.Encryption == seal.StatusFallback {
		fmt.Fprintln(os.Stderr, "warning: key servers unavailable; content is NOT confidential")
	}
	if out.Descriptor != nil {
		return writePlain("descriptor: %s\n", out.Descriptor)
	}
	return nil
}
