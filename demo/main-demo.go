package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ErwanAndreo/HospitalAi/config"
	"github.com/ErwanAndreo/HospitalAi/metrics"
	"github.com/ErwanAndreo/HospitalAi/prediction"
	"github.com/ErwanAndreo/HospitalAi/simulation"
	"github.com/ErwanAndreo/HospitalAi/store"
)

func main() {
	RunDemo()
}

// RunDemo executes a verbose demonstration of the correlated simulation
func RunDemo() {
	fmt.Println("╔══════════════════════════════════════════════════════════╗")
	fmt.Println("║      HOSPITAL SIMULATION DEMO: Correlated Metrics        ║")
	fmt.Println("╚══════════════════════════════════════════════════════════╝")
	fmt.Println()

	// Section 1: Setup
	fmt.Println("🏥 SECTION 1: Creating Hospital")
	fmt.Println("═══════════════════════════════════════════════════════════")

	cfg := config.DefaultConfig()
	cfg.DemoMode = true // frequent disruption events

	st := store.NewMemoryStore()
	seeds := make([]store.DepartmentSeed, 0, len(cfg.Departments))
	for _, d := range cfg.Departments {
		seeds = append(seeds, store.DepartmentSeed{Name: d.Name, TotalBeds: d.TotalBeds})
	}
	st.SeedDepartments(seeds)

	logger := zap.NewNop()
	engine := simulation.NewEngine(cfg, st, logger)

	fmt.Printf("✓ %d departments, %d beds total\n", len(cfg.Departments), cfg.TotalBeds())
	fmt.Printf("✓ Demo mode on: disruption events fire frequently\n")
	fmt.Println()

	// Section 2: Run cycles
	fmt.Println("📊 SECTION 2: Running Simulation Cycles")
	fmt.Println("═══════════════════════════════════════════════════════════")

	for cycle := 1; cycle <= 30; cycle++ {
		engine.Tick()

		if cycle%5 != 0 {
			continue
		}

		state := engine.CurrentMetrics()
		fmt.Printf("\nCycle %d:\n", cycle)
		fmt.Printf("  ED load:         %5.1f %%\n", state.Get(metrics.EDLoad))
		fmt.Printf("  Waiting:         %5.0f patients\n", state.Get(metrics.WaitingCount))
		fmt.Printf("  Free beds:       %5.0f\n", state.Get(metrics.BedsFree))
		fmt.Printf("  Staff load:      %5.1f %%\n", state.Get(metrics.StaffLoad))
		fmt.Printf("  OR load:         %5.1f %%\n", state.Get(metrics.ORLoad))
		fmt.Printf("  Transport queue: %5.0f\n", state.Get(metrics.TransportQueue))

		for _, e := range engine.ActiveEvents() {
			fmt.Printf("  ⚠ ACTIVE EVENT: %s\n", e.Description)
		}

		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println()

	// Section 3: Activity
	fmt.Println("🚑 SECTION 3: Generated Activity")
	fmt.Println("═══════════════════════════════════════════════════════════")

	admissions, discharges := 0, 0
	for _, e := range st.PatientEvents() {
		switch e.EventType {
		case "admission":
			admissions++
		case "discharge":
			discharges++
		}
	}
	transports, _ := st.ListTransports("")
	operations, _ := st.RecentOperations("", time.Now().Add(-time.Hour))

	fmt.Printf("✓ Admissions:  %d\n", admissions)
	fmt.Printf("✓ Discharges:  %d\n", discharges)
	fmt.Printf("✓ Transports:  %d\n", len(transports))
	fmt.Printf("✓ Operations:  %d\n", len(operations))
	fmt.Printf("✓ Alerts:      %d\n", len(st.Alerts()))
	fmt.Println()

	// Section 4: Capacity
	fmt.Println("🛏  SECTION 4: Bed Capacity")
	fmt.Println("═══════════════════════════════════════════════════════════")

	if overview, err := st.CapacityOverview(); err == nil {
		fmt.Println("  Department        Beds  Occupied  Utilization")
		fmt.Println("  ─────────────────────────────────────────────")
		for _, c := range overview {
			fmt.Printf("  %-16s %5d %9d %10.1f %%\n",
				c.Department, c.TotalBeds, c.OccupiedBeds, c.UtilizationPercent)
		}
	}
	fmt.Println()

	// Section 5: Predictions
	fmt.Println("🔮 SECTION 5: Forecasts")
	fmt.Println("═══════════════════════════════════════════════════════════")

	predictor := prediction.NewEngine(engine, cfg, st, logger)
	for _, p := range predictor.GeneratePredictions() {
		unit := "patients"
		if p.PredictionType == "bed_demand" {
			unit = "% utilization"
		}
		fmt.Printf("  %-16s %-14s %3d min: %6.1f %s (confidence %.2f)\n",
			p.Department, p.PredictionType, p.TimeHorizonMinutes,
			p.PredictedValue, unit, p.Confidence)
	}

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println("✓ Correlated metric engine")
	fmt.Println("✓ Disruption events with linear decay")
	fmt.Println("✓ Patient flow, transports, operations, inventory")
	fmt.Println("✓ Threshold alerts")
	fmt.Println("✓ Arrival and bed-demand forecasts")
}
