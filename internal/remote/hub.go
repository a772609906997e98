package remote

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/iliyamo/parking-schedule/internal/catalog"
	"github.com/iliyamo/parking-schedule/internal/model"
	"github.com/iliyamo/parking-schedule/internal/store"
)

// PeerQueueSize is how many frames may wait for a slow peer before the hub
// disconnects it.
const PeerQueueSize = 64

// Hub serves the sync protocol to downstream peers.  Every change applied
// to the store is pushed to all connected peers except the one it came from.
// Pushes never wait on a peer: each peer has its own queue and writer.
type Hub struct {
	store        *store.Store
	catalog      *catalog.Catalog
	writeTimeout time.Duration

	mu    sync.Mutex
	peers map[*peer]struct{}
	unsub func()
}

type peer struct {
	conn net.Conn
	addr string
	out  chan []byte
	done chan struct{}
	once sync.Once
	wmu  sync.Mutex
}

// Read and Write let wsutil answer control frames without interleaving
// with queued frames.
func (p *peer) Read(b []byte) (int, error) { return p.conn.Read(b) }

func (p *peer) Write(b []byte) (int, error) {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.conn.Write(b)
}

func newPeer(conn net.Conn, addr string) *peer {
	return &peer{
		conn: conn,
		addr: addr,
		out:  make(chan []byte, PeerQueueSize),
		done: make(chan struct{}),
	}
}

// enqueue hands data to the peer's writer.  It reports false only when
// the queue is full; frames for a closed peer are discarded.
func (p *peer) enqueue(data []byte) bool {
	select {
	case <-p.done:
		return true
	default:
	}
	select {
	case p.out <- data:
		return true
	default:
		return false
	}
}

// close is idempotent.  Closing the socket also ends the peer's read loop.
func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

func (p *peer) writeLoop(timeout time.Duration) {
	for {
		select {
		case <-p.done:
			return
		case data := <-p.out:
			_ = p.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := p.writeFrame(data); err != nil {
				log.Printf("hub: write to %s failed, dropping peer: %v", p.addr, err)
				p.close()
				return
			}
		}
	}
}

func (p *peer) writeFrame(data []byte) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return wsutil.WriteServerText(p.conn, data)
}

// HubOption customizes a Hub.
type HubOption func(*Hub)

// WithWriteTimeout bounds each frame written to a peer.  A peer that cannot
// take a frame in time is disconnected.
func WithWriteTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// NewHub returns a hub that broadcasts every change applied to st.  Patches
// received from peers are checked against cat before they are applied.
func NewHub(st *store.Store, cat *catalog.Catalog, opts ...HubOption) *Hub {
	if cat == nil {
		cat = catalog.Default()
	}
	h := &Hub{
		store:        st,
		catalog:      cat,
		writeTimeout: DefaultWriteTimeout,
		peers:        make(map[*peer]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.unsub = st.Subscribe(h.broadcast)
	return h
}

// Peers returns the number of connected peers.
func (h *Hub) Peers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// ServeHTTP upgrades the request and serves the peer until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("hub: upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	p := newPeer(conn, r.RemoteAddr)
	h.add(p)
	defer h.remove(p)
	go p.writeLoop(h.writeTimeout)

	ctx := context.WithoutCancel(r.Context())
	for {
		data, err := wsutil.ReadClientText(p)
		if err != nil {
			return
		}
		h.handle(ctx, p, data)
	}
}

// Close disconnects every peer and stops broadcasting.
func (h *Hub) Close() {
	h.mu.Lock()
	unsub := h.unsub
	h.unsub = nil
	peers := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	for _, p := range peers {
		p.close()
	}
}

func (h *Hub) add(p *peer) {
	h.mu.Lock()
	h.peers[p] = struct{}{}
	n := len(h.peers)
	h.mu.Unlock()
	log.Printf("hub: peer %s connected (%d total)", p.addr, n)
}

func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	delete(h.peers, p)
	h.mu.Unlock()
	p.close()
	log.Printf("hub: peer %s disconnected", p.addr)
}

func (h *Hub) handle(ctx context.Context, p *peer, data []byte) {
	msg, err := Decode(data)
	if err != nil {
		log.Printf("hub: dropping message from %s: %v", p.addr, err)
		return
	}
	switch msg.Type {
	case TypeGetData:
		if _, err := model.ParseDateKey(msg.Date, nil); err != nil {
			log.Printf("hub: GET_DATA from %s: %v", p.addr, err)
			return
		}
		reply, err := Encode(Message{
			Type:     TypeScheduleUpdate,
			Schedule: model.Schedule{msg.Date: h.store.Day(msg.Date)},
		})
		if err != nil {
			log.Printf("hub: encode reply failed: %v", err)
			return
		}
		if !p.enqueue(reply) {
			log.Printf("hub: %s is not keeping up, dropping peer", p.addr)
			p.close()
		}
	case TypeUpdateSchedule:
		patch, dropped := Sanitize(msg.Schedule, h.catalog, p.addr)
		if dropped > 0 && len(patch) == 0 {
			return
		}
		if _, err := h.store.Apply(ctx, patch, store.OriginRemote, p); err != nil {
			log.Printf("hub: apply update from %s failed: %v", p.addr, err)
		}
	default:
		log.Printf("hub: ignoring %s message from %s", msg.Type, p.addr)
	}
}

// broadcast runs as a store listener.
func (h *Hub) broadcast(ch store.Change) {
	h.mu.Lock()
	targets := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		if p != ch.Source {
			targets = append(targets, p)
		}
	}
	h.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	data, err := Encode(Message{Type: TypeScheduleUpdate, Schedule: ch.Patch})
	if err != nil {
		log.Printf("hub: encode broadcast failed: %v", err)
		return
	}
	for _, p := range targets {
		if !p.enqueue(data) {
			log.Printf("hub: %s is not keeping up, dropping peer", p.addr)
			p.close()
		}
	}
}
