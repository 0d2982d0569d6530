package client

import (
	gosync "sync"
	"time"
)

// toastTTL — время жизни уведомления на экране.
const toastTTL = 2 * time.Second

type Severity int

const (
	SeveritySuccess Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "success"
}

// Notification — одно всплывающее сообщение дашборда.
type Notification struct {
	Message  string
	Severity Severity
}

// Presenter держит не больше одного уведомления: новое вытесняет
// старое, а таймер сбрасывает его через toastTTL. OnChange вызывается
// при каждом появлении и исчезновении.
type Presenter struct {
	mu       gosync.Mutex
	current  *Notification
	seq      int
	ttl      time.Duration
	onChange func(*Notification)
}

func NewPresenter(onChange func(*Notification)) *Presenter {
	return &Presenter{
		ttl:      toastTTL,
		onChange: onChange,
	}
}

// SetOnChange заменяет подписчика уведомлений
func (p *Presenter) SetOnChange(fn func(*Notification)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Success реализует уведомление об успешном сохранении
func (p *Presenter) Success(message string) {
	p.show(Notification{Message: message, Severity: SeveritySuccess})
}

// Error реализует уведомление об ошибке
func (p *Presenter) Error(message string) {
	p.show(Notification{Message: message, Severity: SeverityError})
}

func (p *Presenter) show(n Notification) {
	p.mu.Lock()
	p.current = &n
	p.seq++
	seq := p.seq
	ttl := p.ttl
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb(&n)
	}

	// Таймер вытесненного уведомления не должен гасить новое.
	time.AfterFunc(ttl, func() {
		p.expire(seq)
	})
}

func (p *Presenter) expire(seq int) {
	p.mu.Lock()
	if p.seq != seq || p.current == nil {
		p.mu.Unlock()
		return
	}
	p.current = nil
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb(nil)
	}
}

// Dismiss убирает уведомление, не дожидаясь таймера
func (p *Presenter) Dismiss() {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.seq++
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb(nil)
	}
}

// Current возвращает видимое уведомление, nil если его нет
func (p *Presenter) Current() *Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	n := *p.current
	return &n
}
