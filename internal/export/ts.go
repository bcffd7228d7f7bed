package export

import (
	"bytes"
	"fmt"
)

const tsHeader = `/**
 * Government Actions Data
 *
 * New Zealand government actions collected from official sources:
 * - Parliament (bills.parliament.nz)
 * - Legislation (legislation.govt.nz)
 * - Gazette (gazette.govt.nz)
 * - Beehive (beehive.govt.nz)
 *
 * DO NOT EDIT MANUALLY - this file is generated by the collector.
 */

`

const tsTypes = `export type SourceSystem = 'PARLIAMENT' | 'LEGISLATION' | 'GAZETTE' | 'BEEHIVE';

export interface Stage {
  name: string;
  date: string;
}

export interface ActionMetadata {
  bill_number?: string;
  parliament_number?: string;
  act_number?: string;
  commencement_date?: string;
  notice_number?: string;
  notice_type?: string;
  document_type?: string;
  portfolio?: string;
  stage_history?: Stage[];
}

export interface CanonicalAction {
  id: string;
  title: string;
  date: string;
  source_system: SourceSystem;
  url: string;
  primary_entity: string;
  summary: string;
  labels: string[];
  metadata: ActionMetadata;
}
`

// renderTypeScript builds actions.ts from the same compact buffers that
// back data.json.
func renderTypeScript(labelsBuf, actionsBuf []byte, meta artifactMeta) ([]byte, error) {
	labelsJSON, err := indentRaw(labelsBuf)
	if err != nil {
		return nil, fmt.Errorf("export: indent labels: %w", err)
	}
	actionsJSON, err := indentRaw(actionsBuf)
	if err != nil {
		return nil, fmt.Errorf("export: indent actions: %w", err)
	}
	sourceCounts, err := marshalCompact(meta.SourceCounts)
	if err != nil {
		return nil, fmt.Errorf("export: marshal source counts: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(tsHeader)
	buf.WriteString(tsTypes)
	fmt.Fprintf(&buf, "\nexport const labels: string[] = %s;\n", labelsJSON)
	fmt.Fprintf(&buf, "\nexport const actions: CanonicalAction[] = %s;\n", actionsJSON)
	fmt.Fprintf(&buf, "\n/* Export metadata:\n")
	fmt.Fprintf(&buf, " * Generated at: %s\n", meta.GeneratedAt)
	fmt.Fprintf(&buf, " * Total actions: %d\n", meta.TotalCount)
	fmt.Fprintf(&buf, " * Source counts: %s\n", sourceCounts)
	fmt.Fprintf(&buf, " * Date range: %s to %s\n", meta.DateRange.Earliest, meta.DateRange.Latest)
	fmt.Fprintf(&buf, " */\n")
	return buf.Bytes(), nil
}
