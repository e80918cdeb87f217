package apportionment

import (
	"math/rand"
	"testing"
	"time"

	"copro-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ownerA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	ownerB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	ownerC = uuid.MustParse("00000000-0000-0000-0000-00000000000c")
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func owner(id uuid.UUID, nom string, milliemes int) domain.Owner {
	return domain.Owner{ID: id, Prenom: "P" + nom, Nom: nom, Milliemes: milliemes}
}

func charge(t domain.ChargeType, key domain.RepartitionKey, amount string) domain.ChargeDefinition {
	return domain.ChargeDefinition{
		ID:             uuid.New(),
		Type:           t,
		Libelle:        string(t),
		MontantAnnuel:  dec(amount),
		Frequence:      domain.Annuel,
		CleRepartition: key,
		Actif:          true,
	}
}

func sum(shares map[uuid.UUID]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s)
	}
	return total
}

func TestSplit_MilliemesProportional(t *testing.T) {
	c := charge(domain.ChargesGenerales, domain.KeyMilliemes, "1000")
	owners := []domain.Owner{owner(ownerA, "A", 500), owner(ownerB, "B", 300), owner(ownerC, "C", 200)}

	alloc := Split(c.MontantAnnuel, &c, owners, nil, nil)
	assert.True(t, dec("500").Equal(alloc.Shares[ownerA]))
	assert.True(t, dec("300").Equal(alloc.Shares[ownerB]))
	assert.True(t, dec("200").Equal(alloc.Shares[ownerC]))
	assert.True(t, alloc.NonReparti.IsZero())
	assert.Nil(t, alloc.Beneficiary)
}

func TestSplit_RemainderGoesToLargestShareThenLowestID(t *testing.T) {
	c := charge(domain.ChargesGenerales, domain.KeyMilliemes, "100")
	// Equal weights: tie broken on the lowest identifier.
	owners := []domain.Owner{owner(ownerC, "C", 1), owner(ownerB, "B", 1), owner(ownerA, "A", 1)}
	alloc := Split(c.MontantAnnuel, &c, owners, nil, nil)
	assert.True(t, dec("33.34").Equal(alloc.Shares[ownerA]), alloc.Shares[ownerA].String())
	assert.True(t, dec("33.33").Equal(alloc.Shares[ownerB]))
	assert.True(t, dec("33.33").Equal(alloc.Shares[ownerC]))
	require.NotNil(t, alloc.Beneficiary)
	assert.Equal(t, ownerA, *alloc.Beneficiary)

	// Largest millieme wins over the lowest identifier.
	owners = []domain.Owner{owner(ownerA, "A", 1), owner(ownerB, "B", 1), owner(ownerC, "C", 4)}
	alloc = Split(c.MontantAnnuel, &c, owners, nil, nil)
	require.NotNil(t, alloc.Beneficiary)
	assert.Equal(t, ownerC, *alloc.Beneficiary)
	assert.True(t, dec("16.66").Equal(alloc.Shares[ownerA]), alloc.Shares[ownerA].String())
	assert.True(t, dec("66.68").Equal(alloc.Shares[ownerC]), alloc.Shares[ownerC].String())
	assert.True(t, dec("100").Equal(sum(alloc.Shares)))
}

func TestSplit_HalfCentSharesNeverGoNegative(t *testing.T) {
	owners := make([]domain.Owner, 200)
	for i := range owners {
		owners[i] = owner(uuid.New(), "O", 1)
	}
	for _, key := range []domain.RepartitionKey{domain.KeyEgalitaire, domain.KeyMilliemes} {
		c := charge(domain.ChargesGenerales, key, "1.00")
		alloc := Split(c.MontantAnnuel, &c, owners, nil, nil)
		for id, s := range alloc.Shares {
			assert.False(t, s.IsNegative(), "%s: %s", id, s)
		}
		assert.True(t, dec("1").Equal(sum(alloc.Shares)), sum(alloc.Shares).String())
		require.NotNil(t, alloc.Beneficiary)
		assert.True(t, dec("1").Equal(alloc.Shares[*alloc.Beneficiary]))
	}
}

func TestSplit_ConservationForArbitraryMilliemes(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(25)
		owners := make([]domain.Owner, n)
		for j := range owners {
			owners[j] = owner(uuid.New(), "O", 1+rng.Intn(400))
		}
		cents := rng.Int63n(10_000_000)
		amount := decimal.New(cents, -2)
		c := charge(domain.ChargesGenerales, domain.KeyMilliemes, amount.String())

		alloc := Split(amount, &c, owners, nil, nil)
		require.True(t, amount.Equal(sum(alloc.Shares)), "iteration %d: %s != %s", i, sum(alloc.Shares), amount)
		for _, s := range alloc.Shares {
			assert.True(t, s.Equal(s.Round(2)))
			assert.False(t, s.IsNegative())
		}
	}
}

func TestSplit_ExclusionReducesDenominator(t *testing.T) {
	c := charge(domain.ChargesSpeciales, domain.KeyMilliemes, "1200")
	owners := []domain.Owner{owner(ownerA, "A", 500), owner(ownerB, "B", 300), owner(ownerC, "C", 200)}
	excluded := map[uuid.UUID]bool{ownerA: true}

	alloc := Split(c.MontantAnnuel, &c, owners, excluded, nil)
	assert.True(t, alloc.Shares[ownerA].IsZero())
	assert.True(t, alloc.Excluded[ownerA])
	assert.True(t, dec("720").Equal(alloc.Shares[ownerB]))
	assert.True(t, dec("480").Equal(alloc.Shares[ownerC]))
	assert.True(t, dec("1200").Equal(sum(alloc.Shares)))
}

func TestSplit_ExclusionIgnoredOutsideSpecialCharges(t *testing.T) {
	c := charge(domain.ChargesGenerales, domain.KeyEgalitaire, "90")
	owners := []domain.Owner{owner(ownerA, "A", 500), owner(ownerB, "B", 300), owner(ownerC, "C", 200)}
	alloc := Split(c.MontantAnnuel, &c, owners, map[uuid.UUID]bool{ownerA: true}, nil)
	assert.True(t, dec("30").Equal(alloc.Shares[ownerA]))
	assert.Empty(t, alloc.Excluded)
}

func TestSplit_EgalitaireWithExclusion(t *testing.T) {
	c := charge(domain.ChargesSpeciales, domain.KeyEgalitaire, "1000")
	owners := []domain.Owner{
		owner(ownerA, "A", 500), owner(ownerB, "B", 300), owner(ownerC, "C", 200),
		owner(uuid.MustParse("00000000-0000-0000-0000-00000000000d"), "D", 0),
	}
	alloc := Split(c.MontantAnnuel, &c, owners, map[uuid.UUID]bool{ownerB: true}, nil)

	// A, C and D pay 333.33 each, the extra cent lands on the lowest identifier.
	assert.True(t, dec("333.34").Equal(alloc.Shares[ownerA]))
	assert.True(t, alloc.Shares[ownerB].IsZero())
	assert.True(t, dec("333.33").Equal(alloc.Shares[ownerC]))
	assert.True(t, dec("1000").Equal(sum(alloc.Shares)))
}

func TestSplit_CustomCompleteQuotas(t *testing.T) {
	c := charge(domain.ChargesGenerales, domain.KeyCustom, "900")
	owners := []domain.Owner{owner(ownerA, "A", 500), owner(ownerB, "B", 300)}
	quotas := map[uuid.UUID]decimal.Decimal{ownerA: dec("2"), ownerB: dec("1")}

	alloc := Split(c.MontantAnnuel, &c, owners, nil, quotas)
	assert.True(t, dec("600").Equal(alloc.Shares[ownerA]))
	assert.True(t, dec("300").Equal(alloc.Shares[ownerB]))
	assert.True(t, alloc.NonReparti.IsZero())
}

func TestSplit_CustomIncompleteQuotas(t *testing.T) {
	c := charge(domain.ChargesGenerales, domain.KeyCustom, "900")
	owners := []domain.Owner{owner(ownerA, "A", 500), owner(ownerB, "B", 300), owner(ownerC, "C", 200)}

	// C has no quote-part: C pays nothing, the defined parts carry the charge.
	quotas := map[uuid.UUID]decimal.Decimal{ownerA: dec("2"), ownerB: dec("1")}
	alloc := Split(c.MontantAnnuel, &c, owners, nil, quotas)
	assert.True(t, alloc.Shares[ownerC].IsZero())
	assert.True(t, dec("900").Equal(sum(alloc.Shares)))

	// No quote-part at all: nothing can be apportioned.
	alloc = Split(c.MontantAnnuel, &c, owners, nil, nil)
	assert.True(t, sum(alloc.Shares).IsZero())
	assert.True(t, dec("900").Equal(alloc.NonReparti))
}

func TestSplit_AllExcluded(t *testing.T) {
	c := charge(domain.ChargesSpeciales, domain.KeyMilliemes, "50")
	owners := []domain.Owner{owner(ownerA, "A", 500)}
	alloc := Split(c.MontantAnnuel, &c, owners, map[uuid.UUID]bool{ownerA: true}, nil)
	assert.True(t, alloc.Shares[ownerA].IsZero())
	assert.True(t, dec("50").Equal(alloc.NonReparti))
}

func TestCompute_AccumulatesOwnerTotals(t *testing.T) {
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	general := charge(domain.ChargesGenerales, domain.KeyMilliemes, "1200")
	special := charge(domain.ChargesSpeciales, domain.KeyEgalitaire, "600")
	inactive := charge(domain.FondsReserve, domain.KeyMilliemes, "5000")
	inactive.Actif = false
	ended := charge(domain.FraisAdministration, domain.KeyMilliemes, "100")
	end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ended.DateFin = &end

	in := Input{
		Charges:    []domain.ChargeDefinition{general, special, inactive, ended},
		Owners:     []domain.Owner{owner(ownerA, "A", 600), owner(ownerB, "B", 400)},
		Exclusions: []domain.Exclusion{{ChargeID: special.ID, OwnerID: ownerB}},
	}
	res := Compute(in, asOf)

	assert.Equal(t, 1000, res.TotalMilliemes)
	require.Len(t, res.Repartition, 2)
	require.Len(t, res.Charges, 2)

	a := res.Repartition[0]
	assert.Equal(t, ownerA, a.ProprietaireID)
	assert.True(t, dec("1320").Equal(a.TotalAnnuel), a.TotalAnnuel.String()) // 720 + 600
	assert.True(t, dec("110").Equal(a.TotalMensuel))
	require.Len(t, a.Details, 2)

	b := res.Repartition[1]
	assert.True(t, dec("480").Equal(b.TotalAnnuel))
	assert.True(t, dec("40").Equal(b.TotalMensuel))
	assert.True(t, b.Details[1].Exclu)
	assert.True(t, b.Details[1].Montant.IsZero())
}

func TestCompute_EmptyBuilding(t *testing.T) {
	res := Compute(Input{}, time.Now())
	assert.Equal(t, 0, res.TotalMilliemes)
	assert.Empty(t, res.Repartition)
	assert.Empty(t, res.Charges)

	// Charges but no owners: the whole amount stays unallocated.
	c := charge(domain.ChargesGenerales, domain.KeyMilliemes, "100")
	res = Compute(Input{Charges: []domain.ChargeDefinition{c}}, time.Now())
	require.Len(t, res.Charges, 1)
	assert.True(t, dec("100").Equal(res.Charges[0].NonReparti))
}

func TestCompute_MonthlyTotalRounded(t *testing.T) {
	c := charge(domain.ChargesGenerales, domain.KeyEgalitaire, "100")
	res := Compute(Input{
		Charges: []domain.ChargeDefinition{c},
		Owners:  []domain.Owner{owner(ownerA, "A", 1)},
	}, time.Now())
	assert.True(t, dec("8.33").Equal(res.Repartition[0].TotalMensuel))
}

func TestTotals_NominalPerType(t *testing.T) {
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	g1 := charge(domain.ChargesGenerales, domain.KeyMilliemes, "1000")
	g2 := charge(domain.ChargesGenerales, domain.KeyMilliemes, "250.50")
	s := charge(domain.ChargesSpeciales, domain.KeyMilliemes, "300")
	off := charge(domain.FondsRoulement, domain.KeyMilliemes, "999")
	off.Actif = false

	totals := Totals([]domain.ChargeDefinition{g1, g2, s, off}, asOf)
	assert.True(t, dec("1250.50").Equal(totals[string(domain.ChargesGenerales)]))
	assert.True(t, dec("300").Equal(totals[string(domain.ChargesSpeciales)]))
	assert.True(t, totals[string(domain.FondsRoulement)].IsZero())
	assert.True(t, totals[string(domain.FraisAdministration)].IsZero())
	assert.True(t, dec("1550.50").Equal(totals["total"]))
	assert.Len(t, totals, 6)
}
