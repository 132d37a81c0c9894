package memorymodel

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

const salesSchema = `
namespace: Sales
types:
  - name: Customer
    properties: [Id, Name]
    navigation:
      - {name: Orders, target: Order, collection: true}
      - {name: Addresses, target: Address, collection: true, contained: true}
      - {name: BestFriend, target: Customer}
  - name: VipCustomer
    base: Customer
    properties: [Level]
  - name: Order
    properties: [Id, Total]
    navigation:
      - {name: Customer, target: Customer}
  - name: Address
    properties: [Street]
sources:
  - name: Customers
    type: Customer
    bindings: {Orders: Orders, BestFriend: Customers}
  - name: Orders
    type: Order
    bindings: {Customer: Customers}
  - name: Me
    type: Customer
    singleton: true
`

func newTestModel(t *testing.T) *Model {
	t.Helper()
	m, err := Load(strings.NewReader(salesSchema))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return m
}

func TestLoad(t *testing.T) {
	m := newTestModel(t)

	customer, ok := m.ResolveType("Sales.Customer")
	if !ok {
		t.Fatal("Sales.Customer not resolved")
	}
	if customer.Name() != "Sales.Customer" {
		t.Errorf("Name() = %q, want Sales.Customer", customer.Name())
	}
	if _, ok := m.ResolveType("Customer"); !ok {
		t.Error("unqualified name not resolved")
	}
	if _, ok := m.ResolveType("Sales.Missing"); ok {
		t.Error("unknown type resolved")
	}

	me, ok := m.Source("Me")
	if !ok || !me.IsSingleton() {
		t.Errorf("Me singleton = %v, %v", me, ok)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		schema string
	}{
		{"unknown field", "namespace: X\nbogus: 1\n"},
		{"unknown base", "types:\n  - {name: A, base: B}\n"},
		{"unknown target", "types:\n  - name: A\n    navigation: [{name: B, target: Missing}]\n"},
		{"duplicate type", "types:\n  - {name: A}\n  - {name: A}\n"},
		{"base cycle", "types:\n  - {name: A, base: B}\n  - {name: B, base: A}\n"},
		{"unknown source type", "sources:\n  - {name: S, type: Missing}\n"},
		{"unknown binding", "types:\n  - {name: A}\nsources:\n  - {name: S, type: A, bindings: {X: Nowhere}}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tt.schema)); err == nil {
				t.Fatal("Load() succeeded, want error")
			}
		})
	}

	_, err := Load(strings.NewReader("types:\n  - {name: A, base: B}\n"))
	if !errors.Is(err, ErrInvalidSchema) {
		t.Errorf("error = %v, want ErrInvalidSchema", err)
	}
}

func TestModel_ElementType(t *testing.T) {
	m := newTestModel(t)
	customers, _ := m.Source("Customers")

	if got := m.ElementType(customers); got == nil || got.Name() != "Sales.Customer" {
		t.Errorf("ElementType(Customers) = %v", got)
	}
	if got := m.ElementType(nil); got != nil {
		t.Errorf("ElementType(nil) = %v, want nil", got)
	}
}

func TestModel_NavigationMember(t *testing.T) {
	m := newTestModel(t)
	vip, _ := m.ResolveType("Sales.VipCustomer")

	// Inherited from the base type.
	orders, ok := m.NavigationMember(vip, "Orders")
	if !ok {
		t.Fatal("Orders not found on VipCustomer")
	}
	if !orders.IsCollection() || orders.ContainsTarget() {
		t.Errorf("Orders collection=%v contained=%v", orders.IsCollection(), orders.ContainsTarget())
	}
	if orders.Target().Name() != "Sales.Order" {
		t.Errorf("Orders target = %q", orders.Target().Name())
	}

	if _, ok := m.NavigationMember(vip, "Missing"); ok {
		t.Error("Missing member found")
	}
	// Memoized miss.
	if _, ok := m.NavigationMember(vip, "Missing"); ok {
		t.Error("Missing member found on second lookup")
	}
	if _, ok := m.NavigationMember(nil, "Orders"); ok {
		t.Error("member found on nil owner")
	}
}

func TestModel_NavigationTarget(t *testing.T) {
	m := newTestModel(t)
	customers, _ := m.Source("Customers")
	customer, _ := m.ResolveType("Customer")

	orders, _ := m.NavigationMember(customer, "Orders")
	target, ok := m.NavigationTarget(customers, orders)
	if !ok || target.Name() != "Orders" {
		t.Errorf("NavigationTarget(Customers, Orders) = %v, %v", target, ok)
	}
	if m.IsContained(target) {
		t.Error("Orders reported as contained")
	}

	addresses, _ := m.NavigationMember(customer, "Addresses")
	contained, ok := m.NavigationTarget(customers, addresses)
	if !ok {
		t.Fatal("contained target not synthesized")
	}
	if contained.Name() != "Customers/Addresses" {
		t.Errorf("contained name = %q", contained.Name())
	}
	if !m.IsContained(contained) {
		t.Error("contained source not reported as contained")
	}
	if got := m.ElementType(contained); got == nil || got.Name() != "Sales.Address" {
		t.Errorf("ElementType(contained) = %v", got)
	}
	again, _ := m.NavigationTarget(customers, addresses)
	if again != contained {
		t.Error("contained source not memoized")
	}

	me, _ := m.Source("Me")
	if _, ok := m.NavigationTarget(me, orders); ok {
		t.Error("unbound member resolved a target")
	}
}

func TestModel_IsAssignable(t *testing.T) {
	m := newTestModel(t)

	tests := []struct {
		name          string
		base, derived string
		want          bool
	}{
		{"same type", "Customer", "Customer", true},
		{"subtype", "Customer", "VipCustomer", true},
		{"supertype", "VipCustomer", "Customer", false},
		{"unrelated", "Customer", "Order", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, _ := m.ResolveType(tt.base)
			derived, _ := m.ResolveType(tt.derived)
			if got := m.IsAssignable(base, derived); got != tt.want {
				t.Errorf("IsAssignable(%s, %s) = %v, want %v", tt.base, tt.derived, got, tt.want)
			}
		})
	}
}

func TestModel_ConcurrentLookups(t *testing.T) {
	m := newTestModel(t)
	customers, _ := m.Source("Customers")
	customer, _ := m.ResolveType("Customer")
	vip, _ := m.ResolveType("VipCustomer")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				addresses, ok := m.NavigationMember(vip, "Addresses")
				if !ok {
					t.Error("Addresses not found")
					return
				}
				if _, ok := m.NavigationTarget(customers, addresses); !ok {
					t.Error("contained target not found")
					return
				}
				if !m.IsAssignable(customer, vip) {
					t.Error("VipCustomer not assignable to Customer")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestSchema_Marshal(t *testing.T) {
	s := &Schema{
		Namespace: "N",
		Types:     []TypeSchema{{Name: "A", Properties: []string{"Id"}}},
		Sources:   []SourceSchema{{Name: "As", Type: "A"}},
	}
	data, err := s.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	m, err := Load(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("Load(Marshal()) error = %v", err)
	}
	if _, ok := m.Source("As"); !ok {
		t.Error("source lost in YAML round trip")
	}
}
