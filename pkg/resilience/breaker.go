package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrCircuitOpen viene restituito quando il circuit breaker è aperto
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// State rappresenta lo stato del circuit breaker
type State int

const (
	// StateClosed il circuito è chiuso, le richieste passano normalmente
	StateClosed State = iota

	// StateOpen il circuito è aperto, le richieste vengono rifiutate
	StateOpen

	// StateHalfOpen il circuito concede una singola richiesta di probe
	StateHalfOpen
)

// String restituisce la rappresentazione string dello stato
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig contiene la configurazione del circuit breaker
type BreakerConfig struct {
	// FailureThreshold numero di errori consecutivi prima di aprire il circuito
	FailureThreshold int

	// BaseCooldown durata iniziale dello stato open
	BaseCooldown time.Duration

	// MaxCooldown limite superiore per il cooldown raddoppiato
	MaxCooldown time.Duration

	// OnStateChange callback chiamata quando lo stato cambia
	OnStateChange func(from, to State)
}

// DefaultBreakerConfig restituisce una configurazione di default
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		BaseCooldown:     30 * time.Second,
		MaxCooldown:      10 * time.Minute,
	}
}

// Breaker implementa il circuit breaker per un singolo agente.
// Dopo FailureThreshold errori consecutivi il circuito si apre; allo
// scadere del cooldown viene concessa esattamente una probe: se fallisce
// il circuito si riapre con cooldown raddoppiato (limitato da MaxCooldown),
// se riesce il circuito si chiude e il cooldown torna al valore base.
type Breaker struct {
	config BreakerConfig

	mu              sync.Mutex
	state           State
	failures        int
	cooldown        time.Duration
	lastFailureTime time.Time
	nextProbeTime   time.Time
	probeInFlight   bool

	totalFailures  int64
	totalSuccesses int64
	totalRejected  int64
}

// NewBreaker crea un nuovo circuit breaker
func NewBreaker(config BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.BaseCooldown <= 0 {
		config.BaseCooldown = def.BaseCooldown
	}
	if config.MaxCooldown <= 0 {
		config.MaxCooldown = def.MaxCooldown
	}

	return &Breaker{
		config:   config,
		state:    StateClosed,
		cooldown: config.BaseCooldown,
	}
}

// Allow verifica se una richiesta può procedere. In stato open concede
// una singola probe una volta scaduto il cooldown.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Now().After(b.nextProbeTime) {
			b.setState(StateHalfOpen)
			b.probeInFlight = true
			return true
		}
		b.totalRejected++
		return false

	case StateHalfOpen:
		// Una sola probe alla volta
		if b.probeInFlight {
			b.totalRejected++
			return false
		}
		b.probeInFlight = true
		return true

	default:
		return true
	}
}

// Eligible verifica se una richiesta potrebbe procedere, senza consumare
// la probe half-open. Usato dal router per filtrare i candidati: il
// consumo effettivo della probe avviene in Allow.
func (b *Breaker) Eligible() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		return time.Now().After(b.nextProbeTime)
	case StateHalfOpen:
		return !b.probeInFlight
	default:
		return true
	}
}

// Record registra l'esito di una richiesta e applica le transizioni di stato
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.onSuccess()
	} else {
		b.onFailure()
	}
}

// onFailure gestisce un fallimento
func (b *Breaker) onFailure() {
	b.totalFailures++
	b.failures++
	b.lastFailureTime = time.Now()

	switch b.state {
	case StateClosed:
		if b.failures >= b.config.FailureThreshold {
			b.open()
		}

	case StateHalfOpen:
		// La probe è fallita: riapri con cooldown raddoppiato
		b.probeInFlight = false
		b.cooldown = b.cooldown * 2
		if b.cooldown > b.config.MaxCooldown {
			b.cooldown = b.config.MaxCooldown
		}
		b.open()
	}
}

// onSuccess gestisce un successo
func (b *Breaker) onSuccess() {
	b.totalSuccesses++
	b.failures = 0

	switch b.state {
	case StateHalfOpen:
		// La probe è riuscita: chiudi e ripristina il cooldown base
		b.probeInFlight = false
		b.cooldown = b.config.BaseCooldown
		b.close()
	}
}

// open apre il circuito
func (b *Breaker) open() {
	b.setState(StateOpen)
	b.nextProbeTime = time.Now().Add(b.cooldown)
	b.failures = 0

	log.Warn().
		Dur("cooldown", b.cooldown).
		Time("next_probe", b.nextProbeTime).
		Msg("Circuit breaker opened")
}

// close chiude il circuito
func (b *Breaker) close() {
	b.setState(StateClosed)
	b.failures = 0

	log.Info().Msg("Circuit breaker closed")
}

// setState cambia lo stato e notifica
func (b *Breaker) setState(newState State) {
	oldState := b.state
	b.state = newState

	if b.config.OnStateChange != nil && oldState != newState {
		// Esegui la callback fuori dal lock
		go b.config.OnStateChange(oldState, newState)
	}
}

// State restituisce lo stato corrente
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// LastFailure restituisce il timestamp dell'ultimo fallimento registrato
func (b *Breaker) LastFailure() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastFailureTime
}

// Reset riporta il circuit breaker allo stato iniziale
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.probeInFlight = false
	b.cooldown = b.config.BaseCooldown
	b.lastFailureTime = time.Time{}
	b.nextProbeTime = time.Time{}

	log.Info().Msg("Circuit breaker reset")
}

// BreakerStats contiene le statistiche del circuit breaker
type BreakerStats struct {
	State           string
	Cooldown        time.Duration
	TotalFailures   int64
	TotalSuccesses  int64
	TotalRejected   int64
	LastFailureTime time.Time
	NextProbeTime   time.Time
}

// Stats restituisce le statistiche del circuit breaker
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BreakerStats{
		State:           b.state.String(),
		Cooldown:        b.cooldown,
		TotalFailures:   b.totalFailures,
		TotalSuccesses:  b.totalSuccesses,
		TotalRejected:   b.totalRejected,
		LastFailureTime: b.lastFailureTime,
		NextProbeTime:   b.nextProbeTime,
	}
}
