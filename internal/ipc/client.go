package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Submit asks the daemon to start a job.
func (c *Client) Submit(req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.client.Call("Wavedeck.Submit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Poll consumes the finished job result, if any.
func (c *Client) Poll() (*PollResponse, error) {
	var resp PollResponse
	if err := c.client.Call("Wavedeck.Poll", PollRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Wait blocks until the current job finishes or the timeout elapses.
func (c *Client) Wait(timeout time.Duration) (*WaitResponse, error) {
	var resp WaitResponse
	req := WaitRequest{TimeoutSeconds: int(timeout.Round(time.Second) / time.Second)}
	if err := c.client.Call("Wavedeck.Wait", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Wavedeck.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stems lists the current stems.
func (c *Client) Stems() (*StemsResponse, error) {
	var resp StemsResponse
	if err := c.client.Call("Wavedeck.Stems", StemsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SaveStem copies a current stem into the output root.
func (c *Client) SaveStem(stem string) (*SaveStemResponse, error) {
	var resp SaveStemResponse
	if err := c.client.Call("Wavedeck.SaveStem", SaveStemRequest{Stem: stem}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
