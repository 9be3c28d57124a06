package domainsync

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/internal/platform/panel"
)

// ExpiryTolerance absorbs clock and timezone skew between us and the
// registrar; expiry dates within it are not drift.
const ExpiryTolerance = 24 * time.Hour

// Diff compares the local domain record against the registrar's view and
// returns the diverging fields. An empty map means the records agree.
func Diff(local *models.Domain, remote *panel.DomainInfo) map[string]models.FieldMismatch {
	mismatches := map[string]models.FieldMismatch{}

	if remote.Status != "" && remote.Status != string(local.Status) {
		mismatches["status"] = models.FieldMismatch{Local: string(local.Status), Provider: remote.Status}
	}

	if remote.ExpiryDate != nil {
		if local.ExpiryDate == nil {
			mismatches["expiry_date"] = models.FieldMismatch{Local: nil, Provider: remote.ExpiryDate}
		} else {
			delta := local.ExpiryDate.Sub(*remote.ExpiryDate)
			if delta < 0 {
				delta = -delta
			}
			if delta > ExpiryTolerance {
				mismatches["expiry_date"] = models.FieldMismatch{Local: local.ExpiryDate, Provider: remote.ExpiryDate}
			}
		}
	}

	if len(remote.Nameservers) > 0 {
		localNS := localNameservers(local)
		if !sameSet(localNS, remote.Nameservers) {
			mismatches["nameservers"] = models.FieldMismatch{Local: localNS, Provider: remote.Nameservers}
		}
	}

	if remote.RegistrarDomainID != "" && local.RegistrarDomainID != "" &&
		remote.RegistrarDomainID != local.RegistrarDomainID {
		mismatches["registrar_domain_id"] = models.FieldMismatch{Local: local.RegistrarDomainID, Provider: remote.RegistrarDomainID}
	}

	return mismatches
}

func localNameservers(d *models.Domain) []string {
	var ns []string
	if len(d.Nameservers) > 0 {
		_ = json.Unmarshal(d.Nameservers, &ns)
	}
	return ns
}

// sameSet compares nameserver lists ignoring order.
func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
