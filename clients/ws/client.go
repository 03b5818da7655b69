// Package ws provides a WebSocket client for the crew gateway.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/coder/websocket"

	wsprotocol "github.com/dohr-michael/crew/internal/gateway/ws"
)

// Client is a WebSocket client for the crew gateway.
type Client struct {
	conn   *websocket.Conn
	reqSeq uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Dial connects to the gateway WebSocket endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	clientCtx, cancel := context.WithCancel(ctx)

	return &Client{
		conn:   conn,
		ctx:    clientCtx,
		cancel: cancel,
	}, nil
}

// Request sends a request frame and returns the frame id so the caller
// can match the response read off ReadFrame.
func (c *Client) Request(method wsprotocol.Method, params any) (string, error) {
	seq := atomic.AddUint64(&c.reqSeq, 1)
	id := fmt.Sprintf("req-%d", seq)

	frame := wsprotocol.Frame{
		Type:   wsprotocol.FrameTypeRequest,
		ID:     id,
		Method: string(method),
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return "", fmt.Errorf("marshal params: %w", err)
		}
		frame.Params = data
	}

	data, err := wsprotocol.MarshalFrame(frame)
	if err != nil {
		return "", err
	}

	if err := c.conn.Write(c.ctx, websocket.MessageText, data); err != nil {
		return "", err
	}
	return id, nil
}

// SpawnTask asks the gateway to spawn a task.
func (c *Client) SpawnTask(description, label, profile string) (string, error) {
	return c.Request(wsprotocol.MethodSpawnTask, map[string]string{
		"description": description,
		"label":       label,
		"profile":     profile,
	})
}

// CancelTask asks the gateway to cancel a task.
func (c *Client) CancelTask(taskID string) (string, error) {
	return c.Request(wsprotocol.MethodCancelTask, map[string]string{
		"task_id": taskID,
	})
}

// ListTasks asks the gateway for the task list.
func (c *Client) ListTasks(includeDone bool) (string, error) {
	return c.Request(wsprotocol.MethodListTasks, map[string]bool{
		"include_done": includeDone,
	})
}

// ReadFrame reads the next frame from the connection.
func (c *Client) ReadFrame() (wsprotocol.Frame, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		return wsprotocol.Frame{}, err
	}
	return wsprotocol.UnmarshalFrame(data)
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	c.cancel()
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
