// Command torsion-contactd sends a single out-of-band contact request to
// a peer's onion address and reports the outcome, wiring together the
// identity, keycap, transport, and contactrequest packages. Its command
// construction is grounded on cmd/ping/main.go's newRootCommand pattern:
// a cobra.Command built from a locally-scoped config struct, executed
// through charmbracelet/fang for styled help and error output.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/katzenpost/torsion/config"
	"github.com/katzenpost/torsion/contactrequest"
	"github.com/katzenpost/torsion/identity"
	"github.com/katzenpost/torsion/keycap"
	"github.com/katzenpost/torsion/logging"
	"github.com/katzenpost/torsion/transport"
)

// cliConfig holds the command line configuration.
type cliConfig struct {
	ConfigFile     string
	TargetID       string
	Nickname       string
	Message        string
	LocalSecretHex string
	Timeout        int
}

func newRootCommand() *cobra.Command {
	var cfg cliConfig

	cmd := &cobra.Command{
		Use:   "torsion-contactd",
		Short: "Send a Torsion contact request",
		Long: `torsion-contactd sends a single out-of-band contact request to a peer
identified by their torsion:<base32> ID or <base32>.onion hostname, and
prints the outcome once the peer responds or the request is closed.`,
		Example: `  # Ask a peer to add you as a contact
  torsion-contactd -c torsion.toml -t torsion:abcdefghijklmnop -n alice -m "hi"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.TargetID == "" {
				return fmt.Errorf("must specify target ID with -t/--target")
			}
			return run(cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.ConfigFile, "config", "c", "", "configuration file")
	cmd.Flags().StringVarP(&cfg.TargetID, "target", "t", "", "target peer's torsion:<id> or <id>.onion")
	cmd.Flags().StringVarP(&cfg.Nickname, "nickname", "n", "", "your nickname, shown to the peer")
	cmd.Flags().StringVarP(&cfg.Message, "message", "m", "", "a short message, shown to the peer")
	cmd.Flags().StringVar(&cfg.LocalSecretHex, "local-secret", "", "16-byte hex local secret (random if omitted)")
	cmd.Flags().IntVar(&cfg.Timeout, "timeout", 0, "give up after this many seconds (0 = wait indefinitely)")

	cmd.MarkFlagRequired("target")
	cmd.MarkFlagRequired("config")

	return cmd
}

func run(cliCfg cliConfig) error {
	fileCfg, err := config.LoadFile(cliCfg.ConfigFile)
	if err != nil {
		return fmt.Errorf("torsion-contactd: failed to load config: %w", err)
	}

	backend, err := logging.New(fileCfg.Logging.File, fileCfg.Logging.Level, fileCfg.Logging.Disable)
	if err != nil {
		return fmt.Errorf("torsion-contactd: failed to set up logging: %w", err)
	}

	targetID := cliCfg.TargetID
	if !identity.IsValid(targetID) {
		targetID = identity.HostnameToID(cliCfg.TargetID)
	}
	if !identity.IsValid(targetID) {
		return fmt.Errorf("torsion-contactd: %q is not a valid target", cliCfg.TargetID)
	}
	host := identity.IDToHostname(targetID)

	key, err := keycap.LoadPrivateKeyFile(fileCfg.Identity.KeyFile)
	if err != nil {
		return fmt.Errorf("torsion-contactd: failed to load identity key: %w", err)
	}

	localSecret, err := resolveLocalSecret(cliCfg.LocalSecretHex)
	if err != nil {
		return err
	}

	tr := transport.NewTorSOCKS(fileCfg.SOCKSProxyConfig())
	tr.Notifier().SetReady() // assume Tor is already bootstrapped; a supervisor would call this instead

	obs := &cliObserver{done: make(chan struct{})}

	req, err := contactrequest.New(contactrequest.Config{
		Host:          host,
		Port:          fileCfg.ListenPort,
		MyNickname:    cliCfg.Nickname,
		Message:       cliCfg.Message,
		LocalHostname: fileCfg.Identity.Hostname,
		LocalSecret:   localSecret,
		Key:           key,
		Transport:     tr,
		Observer:      obs,
		Policy:        fileCfg.Reconnect.Policy(),
		Log:           backend,
	})
	if err != nil {
		return fmt.Errorf("torsion-contactd: failed to build request: %w", err)
	}
	defer req.Close()

	if err := req.Send(); err != nil {
		return fmt.Errorf("torsion-contactd: failed to send request: %w", err)
	}

	var timeoutCh <-chan time.Time
	if cliCfg.Timeout > 0 {
		timer := time.NewTimer(time.Duration(cliCfg.Timeout) * time.Second)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-obs.done:
		fmt.Printf("contact request to %s: %s\n", cliCfg.TargetID, req.Response())
		if req.Response() != contactrequest.Accepted {
			if err := req.Err(); err != nil {
				return err
			}
			os.Exit(1)
		}
		return nil
	case <-timeoutCh:
		return fmt.Errorf("torsion-contactd: timed out waiting for a response (state: %s)", req.State())
	}
}

func resolveLocalSecret(hexSecret string) ([]byte, error) {
	if hexSecret == "" {
		secret := make([]byte, 16)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("torsion-contactd: failed to generate local secret: %w", err)
		}
		return secret, nil
	}
	b, err := hex.DecodeString(hexSecret)
	if err != nil {
		return nil, fmt.Errorf("torsion-contactd: invalid --local-secret: %w", err)
	}
	if len(b) != 16 {
		return nil, fmt.Errorf("torsion-contactd: --local-secret must decode to exactly 16 bytes")
	}
	return b, nil
}

// cliObserver adapts the contactrequest.Observer callbacks to process-level
// notifications for this one-shot command.
type cliObserver struct {
	done     chan struct{}
	doneOnce sync.Once
}

func (o *cliObserver) close() { o.doneOnce.Do(func() { close(o.done) }) }

func (o *cliObserver) OnAcknowledged() {
	fmt.Println("request acknowledged, awaiting the peer's decision...")
}

func (o *cliObserver) OnAccepted(conn io.ReadWriteCloser) {
	_ = conn // the session layer would adopt this; this command just reports success
	o.close()
}

func (o *cliObserver) OnRejected(code byte) {
	fmt.Printf("request rejected by peer (code 0x%02x)\n", code)
}

func (o *cliObserver) OnResponseChanged(response contactrequest.Response) {
	if response.IsTerminal() && response != contactrequest.Accepted {
		o.close()
	}
}

var _ contactrequest.Observer = (*cliObserver)(nil)

func main() {
	rootCmd := newRootCommand()

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(versioninfo.Short()),
	); err != nil {
		os.Exit(1)
	}
}
