package server

import (
	"errors"
	"net/netip"
	"testing"

	"avb/domain/credential"
)

func TestDefaultRepository(t *testing.T) {
	repo := NewDefaultRepository()

	t.Run("NotFoundBeforeAdd", func(t *testing.T) {
		if _, err := repo.GetByAddress(netip.MustParseAddrPort("1.2.3.4:5")); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := repo.GetByClientID(1); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("AddAndGet", func(t *testing.T) {
		p := NewPeer(7, netip.MustParseAddrPort("5.6.7.8:9000"), credential.PreSharedKeyMechanism)
		repo.Add(p)
		byID, err := repo.GetByID(p.ID())
		if err != nil || byID != p {
			t.Fatalf("GetByID: %v, %p", err, byID)
		}
		byAddr, err := repo.GetByAddress(netip.MustParseAddrPort("[::ffff:5.6.7.8]:9000"))
		if err != nil || byAddr != p {
			t.Fatalf("GetByAddress must canonicalise mapped addresses: %v", err)
		}
		byClient, err := repo.GetByClientID(7)
		if err != nil || byClient != p {
			t.Fatalf("GetByClientID: %v", err)
		}
	})

	t.Run("DeleteRemovesAndCloses", func(t *testing.T) {
		p := NewPeer(8, netip.MustParseAddrPort("12.12.12.12:9000"), credential.PreSharedKeyMechanism)
		repo.Add(p)
		repo.Delete(p)
		if _, err := repo.GetByID(p.ID()); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if !p.IsClosed() {
			t.Error("deleted peer must be closed")
		}
	})

	t.Run("DeleteKeepsReplacement", func(t *testing.T) {
		addr := netip.MustParseAddrPort("13.13.13.13:9000")
		old := NewPeer(9, addr, credential.PreSharedKeyMechanism)
		repo.Add(old)
		replacement := NewPeer(10, addr, credential.PreSharedKeyMechanism)
		repo.Add(replacement)
		repo.Delete(old)
		got, err := repo.GetByAddress(addr)
		if err != nil || got != replacement {
			t.Fatalf("replacement must survive deletion of the old peer: %v", err)
		}
	})
}

func TestConcurrentRepository_Count(t *testing.T) {
	repo := NewConcurrentRepository(NewDefaultRepository())
	for i := 0; i < 3; i++ {
		repo.Add(NewPeer(uint64(i), netip.AddrPortFrom(netip.MustParseAddr("10.0.0.1"), uint16(1000+i)), credential.PreSharedKeyMechanism))
	}
	if repo.Count() != 3 || len(repo.All()) != 3 {
		t.Fatalf("expected 3 peers, got %d", repo.Count())
	}
}
