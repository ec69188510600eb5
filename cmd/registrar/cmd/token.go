package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/registrar/config"
	"github.com/jmcleod/registrar/internal/secret"
	"github.com/jmcleod/registrar/internal/util"
	"github.com/jmcleod/registrar/session"
)

var tokenCmd = &cobra.Command{
	Use:   "service-token",
	Short: "Service token tools",
	Long:  `Commands for inspecting the tokens this server sends to the auth service.`,
}

type tokenEnv struct {
	AuthSecret string `env:"REGISTRAR_AUTH_SECRET,required"`
}

type tokenReport struct {
	Valid     bool      `json:"valid"`
	Issuer    string    `json:"issuer,omitempty"`
	Audience  []string  `json:"audience,omitempty"`
	ID        string    `json:"id,omitempty"`
	IssuedAt  time.Time `json:"issued_at,omitzero"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Error     string    `json:"error,omitempty"`
}

var tokenVerifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Verify a service token against REGISTRAR_AUTH_SECRET",
	Long: `Checks the signature, issuer, audience and expiry of a service token
using the key derived from REGISTRAR_AUTH_SECRET and prints a JSON report.
Exits non-zero when the token is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw tokenEnv
		if err := config.ParseEnv(&raw); err != nil {
			return err
		}
		key, err := util.HexDecodeExact(strings.TrimSpace(raw.AuthSecret), secret.Size)
		if err != nil {
			return fmt.Errorf("REGISTRAR_AUTH_SECRET: %w: %v", config.ErrInvalidSecret, err)
		}
		defer util.WipeBytes(key)

		return verifyToken(cmd.OutOrStdout(), args[0], key)
	},
}

func verifyToken(out io.Writer, token string, authSecret []byte) error {
	report := tokenReport{}
	claims, verr := session.VerifyServiceToken(strings.TrimSpace(token), authSecret)
	if verr != nil {
		report.Error = verr.Error()
	} else {
		report.Valid = true
		report.Issuer = claims.Issuer
		report.Audience = claims.Audience
		report.ID = claims.ID
		if claims.IssuedAt != nil {
			report.IssuedAt = claims.IssuedAt.Time.UTC()
		}
		if claims.ExpiresAt != nil {
			report.ExpiresAt = claims.ExpiresAt.Time.UTC()
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if verr != nil {
		return errors.New("token is invalid")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenVerifyCmd)
}
