package services

import (
	"sort"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

// brandAliases maps lower-case brand and generic names to a generic name.
// Generic names map to themselves so that common drugs can be resolved
// (and degraded to a synthetic identifier) without the provider.
var brandAliases = map[string]string{
	// anticoagulants / antiplatelets
	"warfarin": "warfarin", "coumadin": "warfarin", "jantoven": "warfarin",
	"apixaban": "apixaban", "eliquis": "apixaban",
	"rivaroxaban": "rivaroxaban", "xarelto": "rivaroxaban",
	"clopidogrel": "clopidogrel", "plavix": "clopidogrel",
	"aspirin": "aspirin", "bayer": "aspirin", "ecotrin": "aspirin",

	// analgesics
	"ibuprofen": "ibuprofen", "advil": "ibuprofen", "motrin": "ibuprofen",
	"naproxen": "naproxen", "aleve": "naproxen", "naprosyn": "naproxen",
	"acetaminophen": "acetaminophen", "tylenol": "acetaminophen", "paracetamol": "acetaminophen",
	"tramadol": "tramadol", "ultram": "tramadol",

	// psychiatric
	"sertraline": "sertraline", "zoloft": "sertraline",
	"fluoxetine": "fluoxetine", "prozac": "fluoxetine",
	"phenelzine": "phenelzine", "nardil": "phenelzine",
	"lithium": "lithium", "lithobid": "lithium",
	"diazepam": "diazepam", "valium": "diazepam",

	// cardiovascular
	"simvastatin": "simvastatin", "zocor": "simvastatin",
	"atorvastatin": "atorvastatin", "lipitor": "atorvastatin",
	"lisinopril": "lisinopril", "zestril": "lisinopril", "prinivil": "lisinopril",
	"spironolactone": "spironolactone", "aldactone": "spironolactone",
	"digoxin": "digoxin", "lanoxin": "digoxin",
	"amiodarone": "amiodarone", "cordarone": "amiodarone", "pacerone": "amiodarone",
	"amlodipine": "amlodipine", "norvasc": "amlodipine",
	"nitroglycerin": "nitroglycerin", "nitrostat": "nitroglycerin",
	"sildenafil": "sildenafil", "viagra": "sildenafil",

	// anti-infectives
	"clarithromycin": "clarithromycin", "biaxin": "clarithromycin",
	"fluconazole": "fluconazole", "diflucan": "fluconazole",
	"amoxicillin": "amoxicillin", "amoxil": "amoxicillin",
	"penicillin": "penicillin",
	"cephalexin": "cephalexin", "keflex": "cephalexin",
	"trimethoprim": "trimethoprim",
	"sulfamethoxazole": "sulfamethoxazole", "bactrim": "sulfamethoxazole",

	// other
	"omeprazole": "omeprazole", "prilosec": "omeprazole",
	"metformin": "metformin", "glucophage": "metformin",
	"levothyroxine": "levothyroxine", "synthroid": "levothyroxine",
	"tacrolimus": "tacrolimus", "prograf": "tacrolimus",
	"methotrexate": "methotrexate", "trexall": "methotrexate",
	"phenytoin": "phenytoin", "dilantin": "phenytoin",
	"allopurinol": "allopurinol", "zyloprim": "allopurinol",
}

// lookupAlias resolves a name through the static alias table.
func lookupAlias(name string) (string, bool) {
	generic, ok := brandAliases[domain.DrugKey(name)]
	return generic, ok
}

// brandsFor returns the brand aliases of a generic name, sorted.
func brandsFor(generic string) []string {
	generic = domain.DrugKey(generic)
	var brands []string
	for alias, g := range brandAliases {
		if g == generic && alias != generic {
			brands = append(brands, alias)
		}
	}
	sort.Strings(brands)
	return brands
}

// knownInteraction is a curated interaction record.
type knownInteraction struct {
	severity     domain.Severity
	mechanism    string
	description  string
	significance string
}

// knownConfidence is the confidence of a known-table hit.
const knownConfidence = 0.95

// knownInteractions is keyed by domain.PairKey.
var knownInteractions = map[string]knownInteraction{
	domain.PairKey("warfarin", "aspirin"): {
		severity:     domain.SeverityMajor,
		mechanism:    "additive bleeding risk (anticoagulant plus antiplatelet)",
		description:  "Concurrent use significantly increases bleeding risk, including gastrointestinal and intracranial haemorrhage.",
		significance: "Avoid unless specifically indicated; if combined, monitor INR and signs of bleeding closely.",
	},
	domain.PairKey("warfarin", "ibuprofen"): {
		severity:     domain.SeverityMajor,
		mechanism:    "additive bleeding risk (NSAID antiplatelet effect and GI mucosal injury)",
		description:  "NSAIDs increase the bleeding risk of warfarin and may raise INR.",
		significance: "Prefer acetaminophen for analgesia; monitor for bleeding if unavoidable.",
	},
	domain.PairKey("warfarin", "naproxen"): {
		severity:     domain.SeverityMajor,
		mechanism:    "additive bleeding risk (NSAID antiplatelet effect and GI mucosal injury)",
		description:  "NSAIDs increase the bleeding risk of warfarin.",
		significance: "Avoid combination; monitor for bleeding if unavoidable.",
	},
	domain.PairKey("warfarin", "fluconazole"): {
		severity:     domain.SeverityMajor,
		mechanism:    "CYP2C9 inhibition raises warfarin exposure",
		description:  "Fluconazole markedly increases warfarin levels and INR.",
		significance: "Reduce warfarin dose and monitor INR within 3 to 5 days.",
	},
	domain.PairKey("apixaban", "aspirin"): {
		severity:     domain.SeverityModerate,
		mechanism:    "additive bleeding risk",
		description:  "Combining a direct oral anticoagulant with aspirin increases bleeding events.",
		significance: "Confirm a clear indication for dual therapy.",
	},
	domain.PairKey("sertraline", "tramadol"): {
		severity:     domain.SeverityModerate,
		mechanism:    "serotonergic: additive serotonin effects; tramadol also lowers seizure threshold",
		description:  "Concurrent use increases the risk of serotonin syndrome and seizures.",
		significance: "Use the lowest effective doses and monitor for serotonin syndrome.",
	},
	domain.PairKey("fluoxetine", "tramadol"): {
		severity:     domain.SeverityModerate,
		mechanism:    "serotonergic; CYP2D6 inhibition reduces tramadol activation",
		description:  "Increased serotonin syndrome risk with reduced analgesic effect.",
		significance: "Monitor for serotonin syndrome and inadequate pain control.",
	},
	domain.PairKey("phenelzine", "sertraline"): {
		severity:     domain.SeverityMajor,
		mechanism:    "serotonergic: MAO inhibition with serotonin reuptake inhibition",
		description:  "Contraindicated combination with a high risk of fatal serotonin syndrome.",
		significance: "Do not combine; allow a washout period when switching.",
	},
	domain.PairKey("simvastatin", "clarithromycin"): {
		severity:     domain.SeverityMajor,
		mechanism:    "CYP3A4 inhibition raises statin exposure",
		description:  "Clarithromycin greatly increases simvastatin levels and the risk of rhabdomyolysis.",
		significance: "Suspend simvastatin during clarithromycin therapy.",
	},
	domain.PairKey("tacrolimus", "clarithromycin"): {
		severity:     domain.SeverityMajor,
		mechanism:    "CYP3A4 inhibition raises tacrolimus exposure",
		description:  "Tacrolimus levels may rise to nephrotoxic concentrations.",
		significance: "Monitor tacrolimus trough levels and renal function.",
	},
	domain.PairKey("sildenafil", "nitroglycerin"): {
		severity:     domain.SeverityMajor,
		mechanism:    "additive vasodilation (PDE5 inhibition with nitric oxide donor)",
		description:  "Profound, potentially fatal hypotension.",
		significance: "Contraindicated; do not give nitrates within 24 hours of sildenafil.",
	},
	domain.PairKey("digoxin", "amiodarone"): {
		severity:     domain.SeverityMajor,
		mechanism:    "P-glycoprotein inhibition raises digoxin levels",
		description:  "Amiodarone can double digoxin concentrations, causing toxicity.",
		significance: "Halve the digoxin dose and monitor levels.",
	},
	domain.PairKey("lisinopril", "spironolactone"): {
		severity:     domain.SeverityModerate,
		mechanism:    "additive potassium retention",
		description:  "Risk of hyperkalaemia, especially with renal impairment.",
		significance: "Monitor potassium and renal function.",
	},
	domain.PairKey("lithium", "ibuprofen"): {
		severity:     domain.SeverityModerate,
		mechanism:    "reduced renal lithium clearance",
		description:  "NSAIDs can raise lithium levels into the toxic range.",
		significance: "Monitor lithium levels or use an alternative analgesic.",
	},
	domain.PairKey("methotrexate", "trimethoprim"): {
		severity:     domain.SeverityMajor,
		mechanism:    "additive antifolate effect and reduced renal clearance",
		description:  "Risk of severe bone marrow suppression.",
		significance: "Avoid combination.",
	},
	domain.PairKey("clopidogrel", "omeprazole"): {
		severity:     domain.SeverityModerate,
		mechanism:    "CYP2C19 inhibition reduces clopidogrel activation",
		description:  "Reduced antiplatelet effect of clopidogrel.",
		significance: "Prefer pantoprazole if acid suppression is needed.",
	},
}

// lookupKnown returns the curated interaction for a pair, oriented to the
// given drug order.
func lookupKnown(a, b string) (domain.Interaction, bool) {
	k, ok := knownInteractions[domain.PairKey(a, b)]
	if !ok {
		return domain.Interaction{}, false
	}
	return domain.Interaction{
		Drug1:                domain.DrugKey(a),
		Drug2:                domain.DrugKey(b),
		Severity:             k.severity,
		Mechanism:            k.mechanism,
		Description:          k.description,
		ClinicalSignificance: k.significance,
		Confidence:           knownConfidence,
		Found:                true,
		Source:               domain.SourceKnownTable,
	}, true
}
