package service

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// remoteRunner executes pipeline commands on a build host and transfers
// files back to the server.
type remoteRunner interface {
	Run(ctx context.Context, command string, timeout time.Duration) (string, string, error)
	Stream(ctx context.Context, outputCh chan string, command string, timeout time.Duration) error
	Download(remotePath, localPath string) error
	FileSize(remotePath string) (int64, error)
	Close() error
}

type sshRunner struct {
	client *ssh.Client
}

func newSSHRunner(username, hostname string, privateKey []byte) (remoteRunner, error) {
	client, err := connectSSH(username, hostname, privateKey)
	if err != nil {
		return nil, err
	}
	return &sshRunner{client: client}, nil
}

func (r *sshRunner) Run(
	ctx context.Context,
	command string,
	timeout time.Duration,
) (string, string, error) {
	return runCommand(ctx, r.client, command, timeout)
}

func (r *sshRunner) Stream(
	ctx context.Context,
	outputCh chan string,
	command string,
	timeout time.Duration,
) error {
	return runStreamingCommand(ctx, r.client, outputCh, command, timeout)
}

func (r *sshRunner) Download(remotePath, localPath string) error {
	sftpClient, err := sftp.NewClient(r.client)
	if err != nil {
		return err
	}
	defer sftpClient.Close()

	remoteFile, err := sftpClient.Open(remotePath)
	if err != nil {
		return err
	}
	defer remoteFile.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), os.ModePerm); err != nil {
		return err
	}
	localFile, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer localFile.Close()

	if _, err := io.Copy(localFile, remoteFile); err != nil {
		return err
	}
	return nil
}

func (r *sshRunner) FileSize(remotePath string) (int64, error) {
	sftpClient, err := sftp.NewClient(r.client)
	if err != nil {
		return 0, err
	}
	defer sftpClient.Close()

	fi, err := sftpClient.Stat(remotePath)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (r *sshRunner) Close() error {
	return r.client.Close()
}

func connectSSH(username, hostname string, privateKey []byte) (*ssh.Client, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("err parsing ssh private key: %w", err)
	}
	auth := ssh.PublicKeys(signer)
	cc := &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	split := strings.Split(hostname, ":")
	if len(split) == 1 {
		hostname += ":22"
	}
	client, err := ssh.Dial("tcp", hostname, cc)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func runCommand(
	ctx context.Context,
	client *ssh.Client,
	command string,
	timeout time.Duration,
) (string, string, error) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	sess, err := client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("err creating new session: %w", err)
	}
	defer sess.Close()
	sess.Stdout = stdout
	sess.Stderr = stderr

	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	doneCh := make(chan error, 1)

	go func() {
		doneCh <- sess.Run(command)
	}()

	select {
	case <-ctxTimeout.Done():
		return "", "", fmt.Errorf(
			"command '%s' timeout after %d seconds",
			command,
			int(timeout.Seconds()),
		)
	case <-ctx.Done():
		if err := sess.Signal(ssh.SIGINT); err != nil {
			return "", "", RunCancelError{Message: "err sending SIGINT to runner"}
		}
		return "", "", RunCancelError{
			Message: fmt.Sprintf("command '%s' was cancelled by user", command),
		}
	case err := <-doneCh:
		if err != nil {
			return stdout.String(), stderr.String(), err
		}
		return stdout.String(), stderr.String(), nil
	}
}

// runStreamingCommand runs a command on the runner and forwards every stdout
// and stderr line to outputCh while it executes.
func runStreamingCommand(
	ctx context.Context,
	client *ssh.Client,
	outputCh chan string,
	command string,
	timeout time.Duration,
) error {
	sess, err := client.NewSession()
	if err != nil {
		return err
	}
	defer sess.Close()
	stdout, err := sess.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		return err
	}

	doneCh := make(chan error, 1)
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	go func() {
		defer cancel()
		if err := sess.Start(command); err != nil {
			doneCh <- errors.Join(fmt.Errorf("err starting command %s", command), err)
			return
		}

		var wg sync.WaitGroup
		wg.Go(func() {
			scanner := bufio.NewScanner(stdout)
			for scanner.Scan() {
				outputCh <- scanner.Text() + "\n"
			}
		})
		wg.Go(func() {
			scanner := bufio.NewScanner(stderr)
			for scanner.Scan() {
				outputCh <- scanner.Text() + "\n"
			}
		})

		if err := sess.Wait(); err != nil {
			doneCh <- errors.Join(fmt.Errorf("err waiting for command to finish %s", command), err)
			return
		}

		wg.Wait()

		doneCh <- nil
	}()

	select {
	case <-timeoutCtx.Done():
		err := fmt.Errorf(
			"command timed out in %d seconds: '%s'",
			int(timeout.Seconds()),
			command,
		)
		outputCh <- err.Error() + "\n"
		return err
	case <-ctx.Done():
		sess.Signal(ssh.SIGINT)
		message := "run cancelled by user"
		outputCh <- message + "\n"
		return RunCancelError{Message: message}
	case err := <-doneCh:
		return err
	}
}
