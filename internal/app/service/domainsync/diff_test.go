package domainsync

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/internal/platform/panel"
)

func localDomain(status models.DomainStatus, expiry *time.Time, ns string, registrarID string) *models.Domain {
	return &models.Domain{
		Status:            status,
		ExpiryDate:        expiry,
		Nameservers:       datatypes.JSON(ns),
		RegistrarDomainID: registrarID,
	}
}

func TestDiff_Agreement(t *testing.T) {
	expiry := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	local := localDomain(models.DomainStatusActive, &expiry, `["ns1.example.com","ns2.example.com"]`, "reg-1")
	remote := &panel.DomainInfo{
		Status:            "active",
		ExpiryDate:        &expiry,
		Nameservers:       []string{"ns2.example.com", "ns1.example.com"}, // order must not matter
		RegistrarDomainID: "reg-1",
	}
	require.Empty(t, Diff(local, remote))
}

func TestDiff_StatusMismatch(t *testing.T) {
	local := localDomain(models.DomainStatusActive, nil, "", "")
	remote := &panel.DomainInfo{Status: "suspended"}

	m := Diff(local, remote)
	require.Len(t, m, 1)
	require.Equal(t, "active", m["status"].Local)
	require.Equal(t, "suspended", m["status"].Provider)
}

func TestDiff_ExpiryTolerance(t *testing.T) {
	base := time.Date(2027, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		remote time.Time
		drift  bool
	}{
		{"identical", base, false},
		{"within tolerance", base.Add(23 * time.Hour), false},
		{"within tolerance behind", base.Add(-23 * time.Hour), false},
		{"beyond tolerance", base.Add(25 * time.Hour), true},
		{"beyond tolerance behind", base.Add(-25 * time.Hour), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			local := localDomain(models.DomainStatusActive, &base, "", "")
			m := Diff(local, &panel.DomainInfo{Status: "active", ExpiryDate: lo.ToPtr(tc.remote)})
			if tc.drift {
				require.Contains(t, m, "expiry_date")
			} else {
				require.NotContains(t, m, "expiry_date")
			}
		})
	}
}

func TestDiff_NilLocalExpiry(t *testing.T) {
	remote := &panel.DomainInfo{Status: "active", ExpiryDate: lo.ToPtr(time.Now())}
	local := localDomain(models.DomainStatusActive, nil, "", "")
	require.Contains(t, Diff(local, remote), "expiry_date")
}

func TestDiff_Nameservers(t *testing.T) {
	local := localDomain(models.DomainStatusActive, nil, `["ns1.example.com"]`, "")
	remote := &panel.DomainInfo{Status: "active", Nameservers: []string{"ns1.example.com", "ns2.example.com"}}

	m := Diff(local, remote)
	require.Contains(t, m, "nameservers")
}

func TestDiff_RegistrarIDComparedOnlyWhenBothSet(t *testing.T) {
	local := localDomain(models.DomainStatusActive, nil, "", "")
	remote := &panel.DomainInfo{Status: "active", RegistrarDomainID: "reg-9"}
	require.Empty(t, Diff(local, remote))

	local.RegistrarDomainID = "reg-1"
	m := Diff(local, remote)
	require.Contains(t, m, "registrar_domain_id")
}
