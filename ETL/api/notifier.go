package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

// Константы для WebSocket-соединения
const (
	// Время ожидания записи сообщения клиенту
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Период отправки пинг-сообщений
	pingPeriod = (pongWait * 9) / 10

	// Клиенту слать нечего, кроме управляющих кадров
	maxMessageSize = 512

	// Размер очереди сообщений одного клиента
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RunEvent - уведомление о завершении запуска ETL
type RunEvent struct {
	RunID    string            `json:"run_id"`
	Status   string            `json:"status"`
	Error    string            `json:"error,omitempty"`
	Report   *models.RunReport `json:"report,omitempty"`
	Finished time.Time         `json:"finished"`
}

// subscriber - одно WebSocket-подключение
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Notifier рассылает RunEvent всем подключённым клиентам
type Notifier struct {
	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.Mutex
	clients map[*subscriber]bool
	logger  *utils.ETLLogger
}

// NewNotifier создает новый экземпляр Notifier
func NewNotifier(logger *utils.ETLLogger) *Notifier {
	return &Notifier{
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan []byte, sendBufferSize),
		done:       make(chan struct{}),
		clients:    make(map[*subscriber]bool),
		logger:     logger,
	}
}

// Run обслуживает регистрацию клиентов и рассылку до отмены контекста
func (n *Notifier) Run(ctx context.Context) {
	defer close(n.done)
	for {
		select {
		case <-ctx.Done():
			n.mu.Lock()
			for client := range n.clients {
				delete(n.clients, client)
				close(client.send)
			}
			n.mu.Unlock()
			return

		case client := <-n.register:
			n.mu.Lock()
			n.clients[client] = true
			n.mu.Unlock()
			n.logger.Debug("Подписчик %s подключился", client.conn.RemoteAddr())

		case client := <-n.unregister:
			n.mu.Lock()
			if _, ok := n.clients[client]; ok {
				delete(n.clients, client)
				close(client.send)
			}
			n.mu.Unlock()
			n.logger.Debug("Подписчик %s отключился", client.conn.RemoteAddr())

		case message := <-n.broadcast:
			n.mu.Lock()
			for client := range n.clients {
				select {
				case client.send <- message:
				default:
					// Медленный клиент отключается
					delete(n.clients, client)
					close(client.send)
				}
			}
			n.mu.Unlock()
		}
	}
}

// Publish ставит событие в очередь рассылки. Если очередь заполнена, событие отбрасывается.
func (n *Notifier) Publish(event RunEvent) {
	message, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("Ошибка кодирования уведомления о запуске %s: %v", event.RunID, err)
		return
	}
	select {
	case n.broadcast <- message:
	default:
		n.logger.Warn("Очередь уведомлений заполнена, событие запуска %s отброшено", event.RunID)
	}
}

// Subscribers возвращает число подключённых клиентов
func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

// HandleConnections обрабатывает подключение к /ws/etl
func (n *Notifier) HandleConnections(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.logger.Error("Ошибка при установке WebSocket-соединения: %v", err)
		return
	}

	client := &subscriber{conn: conn, send: make(chan []byte, sendBufferSize)}
	select {
	case n.register <- client:
	case <-n.done:
		conn.Close()
		return
	}

	go n.writePump(client)
	go n.readPump(client)
}

// readPump читает только управляющие кадры и отслеживает закрытие соединения
func (n *Notifier) readPump(c *subscriber) {
	defer func() {
		select {
		case n.unregister <- c:
		case <-n.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				n.logger.Debug("Неожиданное закрытие WebSocket: %v", err)
			}
			return
		}
	}
}

// writePump отправляет уведомления клиенту и поддерживает соединение пингами
func (n *Notifier) writePump(c *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрыт
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
