package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/savefuksd/forgeci/internal"
	"github.com/savefuksd/forgeci/internal/security"
	"github.com/savefuksd/forgeci/internal/service"
	"github.com/savefuksd/forgeci/internal/settings"
	"github.com/savefuksd/forgeci/internal/store"
	"github.com/savefuksd/forgeci/internal/util"

	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	_ "modernc.org/sqlite"
)

const usage = `usage: forgeci <command> [arguments]

commands:
	runner add      register a build runner
	runner list     list registered runners
	runner test     test the SSH connection to a runner
	runner delete   remove a runner and its pipelines
	apikey create   generate a webhook API key
	apikey list     list API keys
	apikey delete   remove an API key
	run             trigger a pipeline run on the server
`

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	settings.ReadDotenv(internal.DotEnvPath)
	settings.Settings = settings.NewSettings()

	if os.Args[1] == "run" {
		runTrigger(os.Args[2:])
		return
	}
	if len(os.Args) < 3 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	db := store.InitDatabase(false)
	defer db.Close()
	store.RunMigrations(db, internal.MigrationsDir)

	ctx := context.Background()
	switch os.Args[1] + " " + os.Args[2] {
	case "runner add":
		runnerAdd(ctx, db, os.Args[3:])
	case "runner list":
		runnerList(ctx, db)
	case "runner test":
		runnerTest(ctx, db, os.Args[3:])
	case "runner delete":
		runnerDelete(ctx, db, os.Args[3:])
	case "apikey create":
		apiKeyCreate(ctx, db, os.Args[3:])
	case "apikey list":
		apiKeyList(ctx, db)
	case "apikey delete":
		apiKeyDelete(ctx, db, os.Args[3:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func newRunnerService(db *sql.DB) *service.RunnerService {
	encrypter := security.NewAESEncrypter(security.NewKey())
	return service.NewRunnerService(store.NewRunnerSQLiteStore(db, db), encrypter)
}

func runnerAdd(ctx context.Context, db *sql.DB, args []string) {
	fs := flag.NewFlagSet("runner add", flag.ExitOnError)
	name := fs.String("name", "", "runner name")
	description := fs.String("description", "", "runner description")
	hostname := fs.String("hostname", "", "SSH host, host or host:port")
	username := fs.String("username", "", "SSH user")
	workspace := fs.String("workspace", "forgeci", "build workspace, relative to the SSH user's home")
	cacheDir := fs.String("cache-dir", "forgeci/caches", "dependency cache directory")
	osType := fs.String("os", "unix", "runner OS type")
	keyPath := fs.String("key", "", "path to the SSH private key file")
	fs.Parse(args)

	if *name == "" || *hostname == "" || *username == "" || *keyPath == "" {
		log.Fatal("runner add requires -name, -hostname, -username and -key")
	}

	keyBytes, err := os.ReadFile(*keyPath)
	if err != nil {
		log.Fatal(err)
	}
	keyBytes, err = decryptedPrivateKey(keyBytes)
	if err != nil {
		log.Fatal(err)
	}

	r, err := newRunnerService(db).CreateRunner(
		ctx,
		*name, *description, *hostname, *username, *workspace, *cacheDir, *osType,
		string(keyBytes),
	)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("runner %d (%s) registered\n", r.RunnerID, r.Name)
}

// decryptedPrivateKey returns the key in a form usable for SSH auth,
// prompting for the passphrase when the key file is protected by one.
func decryptedPrivateKey(keyBytes []byte) ([]byte, error) {
	_, err := ssh.ParsePrivateKey(keyBytes)
	if err == nil {
		return keyBytes, nil
	}
	var pmErr *ssh.PassphraseMissingError
	if !errors.As(err, &pmErr) {
		return nil, err
	}

	fmt.Print("Key passphrase: ")
	passphrase, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return nil, err
	}

	rawKey, err := ssh.ParseRawPrivateKeyWithPassphrase(keyBytes, passphrase)
	if err != nil {
		return nil, err
	}
	block, err := ssh.MarshalPrivateKey(rawKey, "")
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(block), nil
}

func runnerList(ctx context.Context, db *sql.DB) {
	runners, err := newRunnerService(db).ListRunners(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range runners {
		fmt.Printf("%d\t%s\t%s@%s\t%s\n", r.RunnerID, r.Name, r.Username, r.Hostname, r.OSType)
	}
}

func runnerTest(ctx context.Context, db *sql.DB, args []string) {
	if len(args) < 1 {
		log.Fatal("runner test requires a runner id")
	}
	if err := newRunnerService(db).TestRunnerConnection(ctx, util.MustAtoi64(args[0])); err != nil {
		log.Fatal("connection failed: ", err)
	}
	fmt.Println("connection ok")
}

func runnerDelete(ctx context.Context, db *sql.DB, args []string) {
	if len(args) < 1 {
		log.Fatal("runner delete requires a runner id")
	}
	if err := newRunnerService(db).DeleteRunner(ctx, util.MustAtoi64(args[0])); err != nil {
		log.Fatal(err)
	}
}

func newAPIKeyService(db *sql.DB) *service.APIKeyService {
	return service.NewAPIKeyService(store.NewAPIKeySQLiteStore(db, db), service.NewUUIDGen())
}

func apiKeyCreate(ctx context.Context, db *sql.DB, args []string) {
	fs := flag.NewFlagSet("apikey create", flag.ExitOnError)
	description := fs.String("description", "", "what the key is for")
	fs.Parse(args)

	key, err := newAPIKeyService(db).CreateAPIKey(ctx, *description)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(key.Value)
}

func apiKeyList(ctx context.Context, db *sql.DB) {
	keys, err := newAPIKeyService(db).ListAPIKeys(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for _, k := range keys {
		fmt.Printf("%d\t%s\t%s\n", k.ID, k.Value, k.Description)
	}
}

func apiKeyDelete(ctx context.Context, db *sql.DB, args []string) {
	if len(args) < 1 {
		log.Fatal("apikey delete requires a key id")
	}
	if err := newAPIKeyService(db).DeleteAPIKey(ctx, util.MustAtoi64(args[0])); err != nil {
		log.Fatal(err)
	}
}

// runTrigger starts a manual run through the server API rather than the
// database, so the run lands on the server's queue.
func runTrigger(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	branch := fs.String("branch", "", "branch to build, pipeline trigger branch when empty")
	apiKey := fs.String("key", os.Getenv("FORGECI_API_KEY"), "API key, FORGECI_API_KEY by default")
	fs.Parse(args)
	if fs.NArg() < 1 {
		log.Fatal("run requires a pipeline id")
	}
	if *apiKey == "" {
		log.Fatal("run requires an API key (-key or FORGECI_API_KEY)")
	}
	pipelineID := util.MustAtoi64(fs.Arg(0))

	body, err := json.Marshal(map[string]string{"branch": *branch})
	if err != nil {
		log.Fatal(err)
	}
	url := fmt.Sprintf("%s/api/pipelines/%d/runs", settings.Settings.BaseURL(), pipelineID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(internal.WebhookTriggerKeyHeader, *apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatal(err)
	}
	if resp.StatusCode >= 400 {
		log.Fatalf("run trigger failed (%d): %s", resp.StatusCode, respBody)
	}
	fmt.Println(string(respBody))
}
