package core

import (
	"fmt"
	"testing"
)

func benchmarkRegistryPublish(b *testing.B, recipients int) {
	opts := testOptions()
	opts.OutboundBuffer = recipients + 2
	hub := NewHub(nil, nil, opts, nil, nil)

	sessions := make([]*Session, 0, recipients)
	for i := 0; i < recipients; i++ {
		s := hub.NewSession(newFakeConn())
		if err := hub.Registry().Register(s, NewIdentity(int64(i+1), fmt.Sprintf("user%d", i), fmt.Sprintf("nick%d", i))); err != nil {
			b.Fatalf("register: %v", err)
		}
		sessions = append(sessions, s)
	}
	sender := sessions[0]

	// Nothing writes the queues out; empty them so every publish reaches everyone.
	drain := func() {
		for _, s := range sessions {
			for len(s.outbound) > 0 {
				<-s.outbound
			}
		}
	}
	drain()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := hub.Registry().Publish(sender, "payload"); err != nil {
			b.Fatalf("publish: %v", err)
		}
		drain()
	}
}

func BenchmarkRegistryPublish_10(b *testing.B)  { benchmarkRegistryPublish(b, 10) }
func BenchmarkRegistryPublish_100(b *testing.B) { benchmarkRegistryPublish(b, 100) }
func BenchmarkRegistryPublish_500(b *testing.B) { benchmarkRegistryPublish(b, 500) }
