// Command event-seeder publishes synthetic sensor events to NATS for
// development and load testing.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/nats-io/nats.go"

	"github.com/gatewatch-systems/gatewatch/internal/logging"
	"github.com/gatewatch-systems/gatewatch/internal/messaging"
)

var eventTypes = []string{"alert", "ssh", "http", "dns", "tls", "flow"}

var signatures = []string{
	"ET SCAN Suspicious inbound to mySQL port 3306",
	"ET POLICY SSH session in progress on unusual port",
	"ET MALWARE Possible Cobalt Strike beacon",
	"ET EXPLOIT Apache log4j RCE attempt",
	"ET DOS Possible SYN flood inbound",
	"ET WEB_SERVER SQL injection attempt in URI",
	"ET TROJAN Observed DNS query to known sinkhole",
}

var categories = []string{
	"Attempted Information Leak",
	"A Network Trojan was detected",
	"Web Application Attack",
	"Misc Attack",
	"Potentially Bad Traffic",
}

func main() {
	natsURL := flag.String("nats", nats.DefaultURL, "NATS server URL")
	count := flag.Int("count", 100, "number of events to publish (0 = unlimited)")
	rate := flag.Duration("rate", 100*time.Millisecond, "delay between events")
	seed := flag.Int64("seed", 0, "random seed (0 = time-based)")
	flag.Parse()

	if *seed != 0 {
		gofakeit.Seed(*seed)
	}

	nc, err := messaging.Connect(*natsURL, logging.Default())
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer nc.Close()

	js, err := messaging.SetupJetStream(nc)
	if err != nil {
		log.Fatalf("Failed to set up JetStream: %v", err)
	}

	log.Printf("Seeding events to %s (count=%d, rate=%s)", *natsURL, *count, *rate)

	published := 0
	for *count == 0 || published < *count {
		event := fakeSensorEvent()
		data, err := json.Marshal(event)
		if err != nil {
			log.Fatalf("Failed to marshal event: %v", err)
		}

		subject := fmt.Sprintf("%s.%s", messaging.SensorSubjectPrefix, event.EventType)
		if _, err := js.Publish(subject, data); err != nil {
			log.Fatalf("Failed to publish to %s: %v", subject, err)
		}

		published++
		if published%100 == 0 {
			log.Printf("Published %d events", published)
		}
		time.Sleep(*rate)
	}

	log.Printf("Done: published %d events", published)
}

// fakeSensorEvent builds a plausible sensor record. A fifth of sources come
// from a small repeat-offender pool so threshold rules actually fire.
func fakeSensorEvent() *messaging.SensorEvent {
	eventType := gofakeit.RandomString(eventTypes)

	srcIP := gofakeit.IPv4Address()
	if gofakeit.Number(1, 5) == 1 {
		srcIP = fmt.Sprintf("203.0.113.%d", gofakeit.Number(1, 10))
	}

	ports := []int{22, 53, 80, 443, 3306, 8080}
	event := &messaging.SensorEvent{
		Timestamp: time.Now().Format("2006-01-02T15:04:05.000000-0700"),
		EventType: eventType,
		SrcIP:     srcIP,
		SrcPort:   gofakeit.Number(1024, 65535),
		DestIP:    gofakeit.IPv4Address(),
		DestPort:  ports[gofakeit.Number(0, len(ports)-1)],
		Proto:     gofakeit.RandomString([]string{"TCP", "UDP"}),
	}

	if eventType == "alert" {
		event.Alert = &messaging.SensorAlert{
			Action:    gofakeit.RandomString([]string{"allowed", "blocked"}),
			Signature: gofakeit.RandomString(signatures),
			Category:  gofakeit.RandomString(categories),
			Severity:  gofakeit.Number(1, 4),
		}
	}
	return event
}
