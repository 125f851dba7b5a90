package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chris-pikul/contacts-rcs/log"
	"github.com/chris-pikul/contacts-rcs/simphoto"
)

const (
	readWait  = 60 * time.Second
	writeWait = 10 * time.Second

	pingInterval = (readWait * 9) / 10

	maxMessageSize = 1024
)

//Client wraps up the websocket connection
//with a sending buffer. Events read from it are handed to the
//server's handler on the reading goroutine, one at a time
type Client struct {
	conn       *websocket.Conn
	sendBuffer chan Message
	server     *Server
}

func (c *Client) watchReads(ctx context.Context) {
	defer func() {
		c.server.unregister(c)
		close(c.sendBuffer)
		c.conn.Close() //Close the actual connection here
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(readWait))

	//Setup the ping/pong response outside of message processing
	//which basically just extends the connection life
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil { // Read/Connection error
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				LogErr(c, "reading from socket connection", err)
			}
			break //Leave the loop, so unregister
		}

		LogDebugf(c, "received message from client %s", string(message))

		c.OnMessage(ctx, message)
	}
}

func (c *Client) watchWrites() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close() //Double check the connection is closed
	}()

	for {
		select {
		case msgObj, ok := <-c.sendBuffer: //Read messages to send
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				//Channel was closed
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil { //Failed to get a write channel
				log.Debug("failed to get a writer for client")
				return
			}
			if err = json.NewEncoder(w).Encode(msgObj); err != nil {
				LogErr(c, "failed to encode message", err)
			}

			if err := w.Close(); err != nil { //Writer failure
				return
			}
		case <-ticker.C: //Ping check for keeping the connection alive
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug("failed to write ping, disconnecting client")
				return
			}
		}
	}
}

//OnConnect is called when the client has successfully been registered
//to the server
func (c *Client) OnConnect() {
	c.send(Message{Type: TypeWelcome})
}

//OnMessage handles one frame from the client. Bad frames get an error
//reply and the connection stays open
func (c *Client) OnMessage(ctx context.Context, src []byte) {
	m, err := parseMessage(src)
	if err != nil {
		c.send(Message{Type: TypeError, Error: err.Error()})
		return
	}

	switch m.Type {
	case TypePing:
		c.send(Message{Type: TypePong, Ping: m.Ping})
	case TypeSimPhotoChanged:
		id := uuid.NewString()
		ev := simphoto.Event{Subscription: *m.Subscription}

		prepLog(c).WithField("event", id).WithField("sim_sub", ev.Subscription).Info("delivering sim photo change")
		c.server.handler.HandleEvent(ctx, ev)

		c.send(Message{Type: TypeAck, ID: id})
	}
}

//send queues a frame for the writer, dropping it when the buffer is full
//so a stalled writer can not block event delivery
func (c *Client) send(m Message) {
	select {
	case c.sendBuffer <- m:
	default:
		LogInfo(c, "send buffer full, dropping "+m.Type+" message")
	}
}
