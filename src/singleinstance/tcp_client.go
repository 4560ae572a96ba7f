package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"screensnap/src/capture"
)

type tcpClient struct{}

func newTcpClient() Client { return &tcpClient{} }

func (c *tcpClient) TryCapture(ctx context.Context, mode capture.Mode) (bool, error) {
	return c.send(ctx, FormatRequest(mode))
}

func (c *tcpClient) ResetPermissions(ctx context.Context) (bool, error) {
	return c.send(ctx, resetRequest)
}

func (c *tcpClient) send(ctx context.Context, line string) (bool, error) {
	deadline := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < deadline {
			deadline = d
		}
	}
	// scan configured range for resident using PING then request
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if !ping(addr, pingTimeout) {
			continue
		}
		conn, err := net.DialTimeout("tcp", addr, deadline)
		if err != nil {
			continue
		}
		err = delegate(conn, line, deadline)
		conn.Close()
		return true, err
	}
	return false, nil
}

func delegate(conn net.Conn, line string, timeout time.Duration) error {
	_ = conn.SetDeadline(time.Now().Add(timeout))
	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(line); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read resident response: %w", err)
	}
	switch status {
	case acceptedResponse:
		return nil
	case errorResponse:
		msg, _ := io.ReadAll(br)
		return errors.New(strings.TrimSpace(string(msg)))
	}
	return fmt.Errorf("unexpected resident response %q", strings.TrimSpace(status))
}
