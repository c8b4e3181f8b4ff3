package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
	send sendFunc
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
		send: smtp.SendMail,
	}
}

// SendLowStockAlert mails one alert listing every item at or below the threshold
func (s *Service) SendLowStockAlert(to string, threshold int, alerts []StockAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	names := make([]string, len(alerts))
	for i, a := range alerts {
		names[i] = a.Name
	}
	subject := fmt.Sprintf("[Stock Alert] %s at or below %d", strings.Join(names, ", "), threshold)
	body := BuildLowStockAlertBody(threshold, alerts)
	return s.sendHTML(to, subject, body)
}

func (s *Service) sendHTML(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.send(addr, nil, s.from, []string{to}, []byte(msg))
}
