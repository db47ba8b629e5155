package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/cripta/envelopesvc/internal/envelope/http/dto"
)

var identifierFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "kind",
		Usage:    "Identifier kind: User, Merchant, UserAuth, or Entity",
		Required: true,
	},
	&cli.StringFlag{
		Name:     "id",
		Usage:    "Identifier id",
		Required: true,
	},
}

func getCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-key",
			Usage: "Create a DEK for an identifier",
			Flags: identifierFlags,
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return post(ctx, cmd, "/key/create", dto.CreateDataKeyRequest{Identifier: identifierFrom(cmd)})
			},
		},
		{
			Name:  "rotate-key",
			Usage: "Rotate an identifier's DEK to the next version",
			Flags: identifierFlags,
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return post(ctx, cmd, "/key/rotate", dto.RotateDataKeyRequest{Identifier: identifierFrom(cmd)})
			},
		},
		{
			Name:  "transfer-key",
			Usage: "Install a caller-supplied base64 key at version 1",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:     "key",
					Usage:    "base64-encoded 32-byte key",
					Required: true,
				},
			}, identifierFlags...),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return post(ctx, cmd, "/key/transfer", dto.TransferKeyRequest{
					Identifier: identifierFrom(cmd),
					Key:        cmd.String("key"),
				})
			},
		},
		{
			Name:  "encrypt",
			Usage: "Encrypt a single plaintext read from stdin",
			Flags: identifierFlags,
			Action: func(ctx context.Context, cmd *cli.Command) error {
				plaintext, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("reading plaintext from stdin: %w", err)
				}
				return post(ctx, cmd, "/data/encrypt", map[string]any{
					"identifier": identifierFrom(cmd),
					"data":       base64.StdEncoding.EncodeToString(plaintext),
				})
			},
		},
		{
			Name:  "decrypt",
			Usage: "Decrypt a single v{n}:base64 ciphertext read from stdin",
			Flags: identifierFlags,
			Action: func(ctx context.Context, cmd *cli.Command) error {
				ciphertext, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("reading ciphertext from stdin: %w", err)
				}
				return post(ctx, cmd, "/data/decrypt", map[string]any{
					"identifier": identifierFrom(cmd),
					"data":       string(bytes.TrimSpace(ciphertext)),
				})
			},
		},
	}
}

func identifierFrom(cmd *cli.Command) dto.IdentifierDTO {
	return dto.IdentifierDTO{
		DataIdentifier: cmd.String("kind"),
		KeyIdentifier:  cmd.String("id"),
	}
}

// post sends a JSON body to the service and prints the raw response body to
// stdout, so output can be piped into jq or back into another command.
func post(ctx context.Context, cmd *cli.Command, path string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cmd.String("url")+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-tenant-id", cmd.String("tenant-id"))
	if creds := cmd.String("credentials"); creds != "" {
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	fmt.Println(string(respBody))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return nil
}
